package flagadmin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/flagstore"
	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
)

// defaultAuditLimit caps audit queries that do not set an explicit limit.
const defaultAuditLimit = 50

// StoreResolver locates the flag store bound to the request's session.
// Returning flagstore.ErrNoSession yields 401.
type StoreResolver func(r *http.Request) (*flagstore.Store, error)

// Handler serves the permission admin API: bulk permission reads, single
// decision lookups with provenance, flag toggles and audit history.
type Handler struct {
	resolve StoreResolver
	audit   auditlog.Reader
	log     *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAuditReader enables the audit history endpoint.
func WithAuditReader(r auditlog.Reader) HandlerOption {
	return func(h *Handler) { h.audit = r }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHandler creates a Handler resolving per-request stores through resolve.
func NewHandler(resolve StoreResolver, opts ...HandlerOption) *Handler {
	h := &Handler{
		resolve: resolve,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts the admin API routes.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/permissions", h.listPermissions)
	r.Get("/permissions/{action}", h.getPermission)
	r.Post("/permissions/{action}/evaluate", h.evaluatePermission)
	r.Post("/flags/{action}", h.toggleFlag)
	r.Get("/audit", h.listAudit)
	return r
}

type permissionsResponse struct {
	Permissions map[string]bool `json:"permissions"`
	Degraded    bool            `json:"degraded"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK, permissionsResponse{
		Permissions: store.AllPermissions(),
		Degraded:    store.Degraded(),
	})
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var rc permission.RuleContext
	if raw := r.URL.Query().Get("ctx"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rc); err != nil {
			h.respondError(w, http.StatusBadRequest, "malformed ctx parameter")
			return
		}
	}

	action := chi.URLParam(r, "action")
	h.respond(w, http.StatusOK, store.Evaluate(action, rc))
}

type evaluateRequest struct {
	Context permission.RuleContext `json:"context"`
}

func (h *Handler) evaluatePermission(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	action := chi.URLParam(r, "action")
	h.respond(w, http.StatusOK, store.Evaluate(action, req.Context))
}

type toggleRequest struct {
	Enabled       bool       `json:"enabled"`
	Reason        string     `json:"reason,omitempty"`
	TargetRoles   []string   `json:"target_roles,omitempty"`
	TargetUsers   []string   `json:"target_users,omitempty"`
	ExcludedUsers []string   `json:"excluded_users,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) toggleFlag(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	opts := []flagstore.ToggleOption{
		flagstore.WithToggleUserAgent(r.UserAgent()),
	}
	if req.Reason != "" {
		opts = append(opts, flagstore.WithToggleReason(req.Reason))
	}
	if req.TargetRoles != nil {
		parsed, err := parseRoles(req.TargetRoles)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = append(opts, flagstore.WithTargetRoles(parsed...))
	}
	if req.TargetUsers != nil {
		opts = append(opts, flagstore.WithTargetUsers(req.TargetUsers...))
	}
	if req.ExcludedUsers != nil {
		opts = append(opts, flagstore.WithExcludedUsers(req.ExcludedUsers...))
	}
	if req.ExpiresAt != nil {
		opts = append(opts, flagstore.WithToggleExpiry(*req.ExpiresAt))
	}

	action := chi.URLParam(r, "action")
	if err := store.ToggleFlag(r.Context(), action, req.Enabled, opts...); err != nil {
		h.toggleError(w, action, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"action": action, "enabled": req.Enabled})
}

func (h *Handler) toggleError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, flagstore.ErrPermissionDenied):
		h.respondError(w, http.StatusForbidden, "feature management permission required")
	case errors.Is(err, flagstore.ErrInvalidAction):
		h.respondError(w, http.StatusBadRequest, "invalid action identifier")
	case errors.Is(err, flagstore.ErrStoreClosed), errors.Is(err, flagstore.ErrNoSession):
		h.respondError(w, http.StatusUnauthorized, "no active session")
	default:
		h.log.Error("toggling flag",
			logger.Component("flagadmin"),
			logger.Action(action),
			logger.Error(err))
		h.respondError(w, http.StatusBadGateway, "flag write failed")
	}
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	if h.audit == nil {
		h.respondError(w, http.StatusNotFound, "audit history not available")
		return
	}
	if !store.Can(roles.ActionSettingsManageFeatures) {
		h.respondError(w, http.StatusForbidden, "feature management permission required")
		return
	}

	criteria := auditlog.Criteria{
		TenantID: store.Identity().TenantID,
		ActorID:  r.URL.Query().Get("actor"),
		ActionID: r.URL.Query().Get("action"),
		Limit:    defaultAuditLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		criteria.Limit = limit
	}

	entries, err := h.audit.Find(r.Context(), criteria)
	if err != nil {
		h.log.Error("querying audit history", logger.Component("flagadmin"), logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"entries": entries})
}

// store resolves the session flag store, writing the error response itself
// when resolution fails.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*flagstore.Store, bool) {
	store, err := h.resolve(r)
	if err != nil {
		if errors.Is(err, flagstore.ErrNoSession) {
			h.respondError(w, http.StatusUnauthorized, "no active session")
		} else {
			h.log.Error("resolving session flag store", logger.Component("flagadmin"), logger.Error(err))
			h.respondError(w, http.StatusInternalServerError, "session resolution failed")
		}
		return nil, false
	}
	return store, true
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("encoding response", logger.Component("flagadmin"), logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respond(w, status, map[string]string{"error": message})
}

func parseRoles(names []string) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(names))
	for _, name := range names {
		role, err := roles.Parse(name)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
