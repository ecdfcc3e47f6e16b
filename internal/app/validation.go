package app

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gosimple/slug"

	"realty_content/internal/domain"
	"realty_content/internal/locale"
)

var errNotObject = validation.NewError("validation_not_object", "must be an object")

// Validator holds the per-kind required-field checklists. Locale fields are
// checked against the resolver's supported set after normalization.
type Validator struct {
	locales *locale.Resolver
}

func NewValidator(r *locale.Resolver) *Validator {
	return &Validator{locales: r}
}

// Create checks a full payload for a new document.
func (v *Validator) Create(k domain.Kind, payload map[string]any) error {
	return v.validate(k, payload, false)
}

// Update checks a partial payload: absent keys are fine, present keys must
// satisfy the same rules as on create.
func (v *Validator) Update(k domain.Kind, patch map[string]any) error {
	if len(patch) == 0 {
		return domain.NewValidationError("", "No fields to update")
	}
	return v.validate(k, patch, true)
}

func (v *Validator) validate(k domain.Kind, payload map[string]any, partial bool) error {
	if payload == nil {
		return domain.NewValidationError("", "Request body must be a JSON object")
	}
	err := validation.Validate(payload, v.rules(k, partial))
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return fmt.Errorf("validate %s: %w", k, internal.InternalError())
	}
	return toValidationError(err)
}

func (v *Validator) rules(k domain.Kind, partial bool) validation.Rule {
	key := func(name string, rules ...validation.Rule) *validation.KeyRules {
		kr := validation.Key(name, rules...)
		if partial {
			kr = kr.Optional()
		}
		return kr
	}
	opt := func(name string, rules ...validation.Rule) *validation.KeyRules {
		return validation.Key(name, rules...).Optional()
	}
	obj := func(keys ...*validation.KeyRules) validation.Rule {
		return objectRule{validation.Map(keys...).AllowExtraKeys()}
	}
	supported := v.localeRule()

	switch k {
	case domain.KindCities:
		return obj(
			key("slug", validation.Required, slugRule(k)),
			key("name", validation.Required),
			key("state", validation.Required),
			key("population", validation.Required),
			key("avgHomePrice", validation.Required),
			key("shortDescription", validation.Required),
			key("tags", validation.Required),
			key("neighborhoods", validation.Required, validation.Each(obj(
				validation.Key("name", validation.Required),
				opt("slug", slugRule("")),
			))),
			key("highlights", validation.Required, validation.Each(obj(
				validation.Key("title", validation.Required),
			))),
			key("faqs", validation.Required, validation.Each(obj(
				validation.Key("question", validation.Required),
				validation.Key("answer", validation.Required),
			))),
			key("seo", validation.Required, obj()),
			opt("language", supported),
			opt("countySlug", slugRule("")),
		)
	case domain.KindCounties:
		return obj(
			key("slug", validation.Required, slugRule(k)),
			key("name", validation.Required),
			key("state", validation.Required),
			opt("locale", supported),
		)
	case domain.KindBlogs:
		return obj(
			key("slug", validation.Required, slugRule(k)),
			key("title", validation.Required),
			key("category", validation.Required),
			key("author", validation.Required, obj(
				validation.Key("name", validation.Required),
				validation.Key("title", validation.Required),
				validation.Key("avatar", validation.Required),
				validation.Key("bio", validation.Required),
			)),
			key("date", validation.Required),
			key("readTime", validation.Required),
			key("heroImage", validation.Required),
			key("heroImageAlt", validation.Required),
			key("canonicalUrl", validation.Required),
			key("language", validation.Required, supported),
			key("city", validation.Required),
			key("topic", validation.Required),
			key("keyword", validation.Required),
			key("group_id", validation.Required),
			key("seo", validation.Required, obj(
				validation.Key("metaTitle", validation.Required),
				validation.Key("metaDescription", validation.Required),
			)),
			key("hreflang_tags", validation.Required),
			key("wordcount", validation.Required),
			key("ctaSection", validation.Required, obj(
				validation.Key("title", validation.Required),
				validation.Key("ctaText", validation.Required),
				validation.Key("ctaLink", validation.Required),
			)),
			key("content", validation.Required, obj(
				validation.Key("lead", validation.Required),
				validation.Key("sections", validation.Required),
			)),
			opt("status", validation.In(domain.StatusDraft, domain.StatusPublished)),
		)
	case domain.KindHome:
		return obj(
			opt("locale", supported),
			opt("testimonials", validation.Each(obj(
				validation.Key("quote", validation.Required),
				validation.Key("author", validation.Required),
				validation.Key("rating", validation.Required, validation.Min(1.0), validation.Max(5.0)),
			))),
		)
	case domain.KindContact:
		return obj(
			opt("locale", supported),
			opt("author", obj(validation.Key("name", validation.Required))),
			opt("recentSales", validation.Each(obj(
				validation.Key("address", validation.Required),
				validation.Key("price", validation.Required),
			))),
		)
	case domain.KindUsers:
		password := []validation.Rule{validation.Required, validation.Length(8, 0)}
		return obj(
			key("email", validation.Required, is.EmailFormat),
			key("password", password...),
			opt("role", validation.In(string(domain.RoleAdmin), string(domain.RoleEditor), string(domain.RoleUser))),
			opt("status", validation.In(string(domain.UserActive), string(domain.UserInactive))),
		)
	}
	return obj()
}

// objectRule reports a non-object value as a field error; a bare MapRule
// treats it as an internal error.
type objectRule struct {
	validation.MapRule
}

func (r objectRule) Validate(value any) error {
	if value == nil {
		return nil
	}
	if rv := reflect.Indirect(reflect.ValueOf(value)); rv.Kind() != reflect.Map {
		return errNotObject
	}
	return r.MapRule.Validate(value)
}

// localeRule accepts an empty value or a supported, already normalized locale.
func (v *Validator) localeRule() validation.Rule {
	return validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return errors.New("must be a supported locale")
		}
		if s == "" || v.locales.IsSupported(s) {
			return nil
		}
		return errors.New("must be a supported locale")
	})
}

// slugRule accepts URL-safe slugs; a collection's own name is reserved for
// its mirror index file.
func slugRule(k domain.Kind) validation.Rule {
	return validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return errors.New("must be a string")
		}
		if s == "" {
			return nil
		}
		if !slug.IsSlug(s) {
			return errors.New("must be a lower-case URL slug")
		}
		if k != "" && s == string(k) {
			return errors.New("is reserved")
		}
		return nil
	})
}

// toValidationError reports the first failing field in sorted path order.
func toValidationError(err error) error {
	path, leaf := firstFailure(err, "")
	if leaf == nil {
		return domain.NewValidationError("", err.Error())
	}
	var ve validation.Error
	if errors.As(leaf, &ve) {
		switch ve.Code() {
		case validation.ErrRequired.Code(), validation.ErrKeyMissing.Code(), validation.ErrNilOrNotEmpty.Code():
			return domain.NewValidationError(path, "Missing required field: "+path)
		}
	}
	return domain.NewValidationError(path, fmt.Sprintf("Invalid field %s: %s", path, leaf.Error()))
}

func firstFailure(err error, prefix string) (string, error) {
	errs, ok := err.(validation.Errors)
	if !ok {
		return prefix, err
	}
	keys := make([]string, 0, len(errs))
	for k, e := range errs {
		if e != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return prefix, nil
	}
	sort.Strings(keys)
	p := keys[0]
	if prefix != "" {
		p = prefix + "." + keys[0]
	}
	return firstFailure(errs[keys[0]], strings.TrimPrefix(p, "."))
}
