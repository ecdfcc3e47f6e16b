package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"realty_content/internal/domain"
)

// ErrInvalidCredentials rejects a login without saying which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService manages admin accounts. Passwords are stored as bcrypt hashes
// in the "password" field and never leave this package in clear.
type UserService struct {
	store    domain.DocumentStore
	sync     *Syncer
	validate *Validator
	cost     int
	now      func() time.Time
}

func NewUserService(store domain.DocumentStore, syncer *Syncer, v *Validator) *UserService {
	return &UserService{
		store:    store,
		sync:     syncer,
		validate: v,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Create(ctx context.Context, payload map[string]any) (domain.ID, error) {
	if err := s.validate.Create(domain.KindUsers, payload); err != nil {
		return "", err
	}
	fields := domain.NewDocument("", payload).Fields
	email := strings.ToLower(strings.TrimSpace(fmt.Sprint(fields["email"])))
	fields["email"] = email

	existing, err := s.store.Find(ctx, domain.KindUsers, domain.Query{Email: email})
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return "", domain.NewValidationError("email", "User with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprint(fields["password"])), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	fields["password"] = string(hash)
	if _, ok := fields["role"]; !ok {
		fields["role"] = string(domain.RoleAdmin)
	}
	if _, ok := fields["status"]; !ok {
		fields["status"] = string(domain.UserActive)
	}
	ts := s.now().Format(time.RFC3339Nano)
	fields["createdAt"] = ts
	fields["updatedAt"] = ts

	id, err := s.store.Insert(ctx, domain.KindUsers, fields)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	log.Info().Str("id", id.String()).Str("email", email).Msg("user created")
	s.mirror(ctx)
	return id, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	docs, err := s.store.Find(ctx, domain.KindUsers, domain.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.UserFromDocument(d))
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id domain.ID) (domain.User, error) {
	d, err := s.store.FindByID(ctx, domain.KindUsers, id)
	if err != nil {
		return domain.User{}, err
	}
	return domain.UserFromDocument(d), nil
}

// Update applies a partial change. A new password is re-hashed; a changed
// email must stay unique.
func (s *UserService) Update(ctx context.Context, id domain.ID, patch map[string]any) error {
	if err := s.validate.Update(domain.KindUsers, patch); err != nil {
		return err
	}
	fields := domain.NewDocument("", patch).Fields
	delete(fields, "createdAt")

	prev, err := s.store.FindByID(ctx, domain.KindUsers, id)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if v, ok := fields["email"]; ok {
		email := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
		fields["email"] = email
		existing, err := s.store.Find(ctx, domain.KindUsers, domain.Query{Email: email})
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		for _, d := range existing {
			if d.ID != prev.ID {
				return domain.NewValidationError("email", "User with this email already exists")
			}
		}
	}
	if v, ok := fields["password"]; ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprint(v)), s.cost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		fields["password"] = string(hash)
	}
	fields["updatedAt"] = s.now().Format(time.RFC3339Nano)

	if err := s.store.Update(ctx, domain.KindUsers, prev.ID, fields); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	log.Info().Str("id", id.String()).Msg("user updated")
	s.mirror(ctx)
	return nil
}

func (s *UserService) Delete(ctx context.Context, id domain.ID) error {
	prev, err := s.store.FindByID(ctx, domain.KindUsers, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if err := s.store.Delete(ctx, domain.KindUsers, prev.ID); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	log.Info().Str("id", id.String()).Msg("user deleted")
	s.mirror(ctx)
	return nil
}

// Authenticate checks an email/password pair. Inactive accounts and accounts
// that may not edit are rejected like wrong passwords.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	docs, err := s.store.Find(ctx, domain.KindUsers, domain.Query{Email: strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, ErrInvalidCredentials
	}
	u := domain.UserFromDocument(docs[0])
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.CanEdit() {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) mirror(ctx context.Context) {
	if err := s.sync.SyncLocale(ctx, domain.KindUsers, ""); err != nil {
		log.Error().Err(err).Msg("users mirror write failed; store change kept")
	}
}
