package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"realty_content/internal/adapters/observability"
	"realty_content/internal/app"
	"realty_content/internal/domain"
	"realty_content/internal/locale"
)

const (
	headerSource   = "X-Content-Source"
	headerFallback = "X-Content-Fallback"
	maxBodyBytes   = 2 << 20
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Q     *app.QueryService
	C     *app.ContentService
	U     *app.UserService
	Store Pinger
	// Auth guards /api/admin and singleton writes; nil leaves them open.
	Auth Authenticator
	// AdminRate caps admin requests per IP per minute; 0 disables it.
	AdminRate int
	// Refresh throttles full mirror rebuilds; nil disables throttling.
	Refresh *rate.Limiter
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string    `json:"message"`
	ID      domain.ID `json:"_id,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)

	admin := AdminAuth(h.Auth)
	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/home", h.getSingleton(domain.KindHome))
		r.With(admin).Put("/home", h.putSingleton(domain.KindHome))
		r.Get("/contact", h.getSingleton(domain.KindContact))
		r.With(admin).Put("/contact", h.putSingleton(domain.KindContact))

		for _, k := range []domain.Kind{domain.KindCities, domain.KindCounties, domain.KindBlogs} {
			r.Get("/"+string(k)+"/{locale}", h.list(k))
		}
		r.Get("/cities/{locale}/{slug}", h.get(domain.KindCities))
		r.Get("/counties/{locale}/{slug}", h.getCounty)
		r.Get("/blogs/group/{groupID}", h.translations)
		r.Get("/blogs/{locale}/{slug}", h.get(domain.KindBlogs))
		r.Post("/blogs/{locale}/{slug}/view", h.blogEvent("views"))
		r.Post("/blogs/{locale}/{slug}/like", h.blogEvent("likes"))

		r.Route("/admin", func(r chi.Router) {
			if h.AdminRate > 0 {
				r.Use(httprate.LimitByIP(h.AdminRate, time.Minute))
			}
			r.Use(admin)

			r.Get("/users", h.listUsers)
			r.Post("/users", h.createUser)
			r.Get("/users/{id}", h.getByID(domain.KindUsers))
			r.Put("/users/{id}", h.updateUser)
			r.Delete("/users/{id}", h.deleteUser)

			r.Post("/mirror/refresh", h.refresh)

			r.Get("/{kind}", h.adminList)
			r.Post("/{kind}", h.create)
			r.Get("/{kind}/{id}", h.adminGet)
			r.Put("/{kind}/{id}", h.update)
			r.Delete("/{kind}/{id}", h.delete)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps service errors onto the {error} shape.
func writeFailure(w http.ResponseWriter, r *http.Request, k domain.Kind, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(k))
	default:
		log.Error().Err(err).Str("kind", string(k)).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func notFoundMessage(k domain.Kind) string {
	switch k {
	case domain.KindCities:
		return "City not found"
	case domain.KindCounties:
		return "County not found"
	case domain.KindBlogs:
		return "Blog post not found"
	case domain.KindUsers:
		return "User not found"
	}
	return "Not found"
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeContent answers a public read, honouring If-None-Match.
func writeContent(w http.ResponseWriter, r *http.Request, res app.Result, v any) {
	observability.ObserveRead(string(res.Kind), res.Source.String(), res.Fallback)

	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set(headerSource, res.Source.String())
	if res.Fallback {
		w.Header().Set(headerFallback, "true")
	}
	if res.Locale != "" {
		w.Header().Set("Content-Language", res.Locale)
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write content body")
	}
}

// requestLocale picks the locale from the path, then ?locale=, then
// Accept-Language. ok is false for a malformed explicit locale.
func (h *Handlers) requestLocale(r *http.Request) (string, bool) {
	explicit := chi.URLParam(r, "locale")
	if explicit == "" {
		explicit = r.URL.Query().Get("locale")
	}
	if strings.TrimSpace(explicit) != "" && locale.Normalize(explicit) == "" {
		return "", false
	}
	return h.Q.Resolver().Negotiate(explicit, r.Header.Get("Accept-Language")), true
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var payload map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil || payload == nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}
	return payload, true
}

func adminKind(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	k, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil || k.Singleton() || k == domain.KindUsers {
		writeError(w, http.StatusNotFound, "Unknown collection")
		return "", false
	}
	return k, true
}

func auditUser(r *http.Request) string {
	if u, ok := UserFrom(r.Context()); ok {
		return u.Email
	}
	return ""
}

// ---- health ----

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.Store.Ping(r.Context()); err != nil {
		// reads still work from the mirror, so this only signals degraded mode
		writeError(w, http.StatusServiceUnavailable, "document store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ---- public reads ----

func (h *Handlers) getSingleton(k domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.requestLocale(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
		res, err := h.Q.GetSingleton(r.Context(), k, l)
		if err != nil {
			writeFailure(w, r, k, err)
			return
		}
		writeContent(w, r, res, res.Document)
	}
}

func (h *Handlers) list(k domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.requestLocale(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
		res, err := h.Q.List(r.Context(), k, l)
		if err != nil {
			writeFailure(w, r, k, err)
			return
		}
		writeContent(w, r, res, res.Documents)
	}
}

func (h *Handlers) get(k domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.requestLocale(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
		res, err := h.Q.Get(r.Context(), k, l, chi.URLParam(r, "slug"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				observability.ObserveRead(string(k), locale.NotFound.String(), false)
			}
			writeFailure(w, r, k, err)
			return
		}
		writeContent(w, r, res, res.Document)
	}
}

func (h *Handlers) getCounty(w http.ResponseWriter, r *http.Request) {
	l, ok := h.requestLocale(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid locale")
		return
	}
	view, err := h.Q.County(r.Context(), l, chi.URLParam(r, "slug"))
	if err != nil {
		writeFailure(w, r, domain.KindCounties, err)
		return
	}
	body := struct {
		County *domain.Document  `json:"county"`
		Cities []domain.Document `json:"cities"`
	}{view.Document, view.Cities}
	writeContent(w, r, view.Result, body)
}

func (h *Handlers) translations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Translations(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeFailure(w, r, domain.KindBlogs, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) blogEvent(counter string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.requestLocale(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
		if err := h.C.RecordBlogEvent(r.Context(), l, chi.URLParam(r, "slug"), counter); err != nil {
			writeFailure(w, r, domain.KindBlogs, err)
			return
		}
		writeJSON(w, http.StatusOK, messageBody{Message: "Recorded"})
	}
}

// ---- writes ----

func (h *Handlers) putSingleton(k domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.requestLocale(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
		payload, ok := decodeObject(w, r)
		if !ok {
			return
		}
		id, err := h.C.PutSingleton(r.Context(), k, l, payload)
		if err != nil {
			writeFailure(w, r, k, err)
			return
		}
		log.Info().Str("kind", string(k)).Str("locale", l).Str("by", auditUser(r)).Msg("singleton saved")
		writeJSON(w, http.StatusOK, messageBody{Message: "Content updated successfully", ID: id})
	}
}

func (h *Handlers) adminList(w http.ResponseWriter, r *http.Request) {
	k, ok := adminKind(w, r)
	if !ok {
		return
	}
	l := ""
	if raw := r.URL.Query().Get("locale"); raw != "" {
		if l = locale.Normalize(raw); l == "" {
			writeError(w, http.StatusBadRequest, "Invalid locale")
			return
		}
	}
	docs, err := h.Q.ListAll(r.Context(), k, l)
	if err != nil {
		writeFailure(w, r, k, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handlers) adminGet(w http.ResponseWriter, r *http.Request) {
	k, ok := adminKind(w, r)
	if !ok {
		return
	}
	h.getByID(k)(w, r)
}

func (h *Handlers) getByID(k domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := h.Q.GetByID(r.Context(), k, domain.ID(chi.URLParam(r, "id")))
		if err != nil {
			writeFailure(w, r, k, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	k, ok := adminKind(w, r)
	if !ok {
		return
	}
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}
	id, err := h.C.Create(r.Context(), k, payload)
	if err != nil {
		writeFailure(w, r, k, err)
		return
	}
	log.Info().Str("kind", string(k)).Str("id", id.String()).Str("by", auditUser(r)).Msg("admin create")
	writeJSON(w, http.StatusOK, messageBody{Message: "Created successfully", ID: id})
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	k, ok := adminKind(w, r)
	if !ok {
		return
	}
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.C.Update(r.Context(), k, id, payload); err != nil {
		writeFailure(w, r, k, err)
		return
	}
	log.Info().Str("kind", string(k)).Str("id", id.String()).Str("by", auditUser(r)).Msg("admin update")
	writeJSON(w, http.StatusOK, messageBody{Message: "Updated successfully", ID: id})
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	k, ok := adminKind(w, r)
	if !ok {
		return
	}
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.C.Delete(r.Context(), k, id); err != nil {
		writeFailure(w, r, k, err)
		return
	}
	log.Info().Str("kind", string(k)).Str("id", id.String()).Str("by", auditUser(r)).Msg("admin delete")
	writeJSON(w, http.StatusOK, messageBody{Message: "Deleted successfully"})
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	if h.Refresh != nil && !h.Refresh.Allow() {
		writeError(w, http.StatusTooManyRequests, "Mirror refresh already requested recently")
		return
	}
	var kinds []domain.Kind
	for _, raw := range r.URL.Query()["kind"] {
		k, err := domain.ParseKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown kind "+raw)
			return
		}
		kinds = append(kinds, k)
	}
	if err := h.C.Refresh(r.Context(), kinds...); err != nil {
		log.Error().Err(err).Msg("mirror refresh incomplete")
		writeError(w, http.StatusInternalServerError, "Mirror refresh incomplete")
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Mirror refreshed"})
}

// ---- users ----

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.U.List(r.Context())
	if err != nil {
		writeFailure(w, r, domain.KindUsers, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}
	id, err := h.U.Create(r.Context(), payload)
	if err != nil {
		writeFailure(w, r, domain.KindUsers, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "User created successfully", ID: id})
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.U.Update(r.Context(), id, payload); err != nil {
		writeFailure(w, r, domain.KindUsers, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "User updated successfully", ID: id})
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.U.Delete(r.Context(), id); err != nil {
		writeFailure(w, r, domain.KindUsers, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "User deleted successfully"})
}
