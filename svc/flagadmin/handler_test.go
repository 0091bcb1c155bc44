package flagadmin_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/docstore"
	"github.com/fieldline/fieldline/pkg/flagstore"
	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
	"github.com/fieldline/fieldline/svc/flagadmin"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startedStore(t *testing.T, role roles.Role, opts ...flagstore.Option) *flagstore.Store {
	t.Helper()

	docs := docstore.NewMemoryStore()
	id := permission.Identity{UserID: "user-1", TenantID: "tenant-1", Role: role}
	opts = append([]flagstore.Option{flagstore.WithLogger(quietLogger())}, opts...)
	store := flagstore.New(docs, id, opts...)
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(store.Close)
	return store
}

func serveWithStore(t *testing.T, store *flagstore.Store, opts ...flagadmin.HandlerOption) http.Handler {
	t.Helper()

	opts = append([]flagadmin.HandlerOption{flagadmin.WithLogger(quietLogger())}, opts...)
	h := flagadmin.NewHandler(flagadmin.ResolveFromContext, opts...)
	router := h.Router()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			r = r.WithContext(flagadmin.WithStore(r.Context(), store))
		}
		router.ServeHTTP(w, r)
	})
}

func TestHandler_ListPermissions(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleTeamMember)
	srv := serveWithStore(t, store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Permissions map[string]bool `json:"permissions"`
		Degraded    bool            `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Permissions[roles.ActionTaskComplete])
	assert.False(t, body.Degraded)
}

func TestHandler_GetPermission(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleTeamMember)
	srv := serveWithStore(t, store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/"+roles.ActionTaskComplete, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var d permission.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Allowed)
	assert.Equal(t, permission.SourceRoleDefault, d.Source)
}

func TestHandler_EvaluateWithContext(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleTeamMember)
	srv := serveWithStore(t, store)

	body := strings.NewReader(`{"context": {"assignee_id": "user-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/permissions/"+roles.ActionTaskComplete+"/evaluate", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var d permission.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Allowed)
}

func TestHandler_NoSession(t *testing.T) {
	t.Parallel()

	srv := serveWithStore(t, nil)

	for _, path := range []string{"/permissions", "/permissions/x", "/audit"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestHandler_ToggleFlag(t *testing.T) {
	t.Parallel()

	audit := auditlog.NewMemoryStorage()
	store := startedStore(t, roles.RoleOwner, flagstore.WithAudit(audit))
	srv := serveWithStore(t, store)

	body := strings.NewReader(`{"enabled": true, "reason": "pilot", "target_roles": ["team_member"]}`)
	req := httptest.NewRequest(http.MethodPost, "/flags/"+roles.ActionFinancialExportData, body)
	req.Header.Set("User-Agent", "fieldline-admin/1.0")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, auditlog.ChangeEnabled, entries[0].Change)
	assert.Equal(t, "pilot", entries[0].Reason)
	assert.Equal(t, "fieldline-admin/1.0", entries[0].UserAgent)
}

func TestHandler_ToggleFlagDenied(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleTeamMember)
	srv := serveWithStore(t, store)

	body := strings.NewReader(`{"enabled": true}`)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flags/"+roles.ActionTaskCreate, body))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_ToggleFlagBadRequests(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleOwner)
	srv := serveWithStore(t, store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flags/some_action", strings.NewReader("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "malformed body")

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"enabled": true, "target_roles": ["superuser"]}`)
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flags/some_action", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown role")
}

func TestHandler_AuditHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	audit := auditlog.NewMemoryStorage()
	require.NoError(t, audit.Record(ctx, auditlog.Entry{
		TenantID: "tenant-1",
		ActorID:  "user-1",
		ActionID: roles.ActionTaskCreate,
		Change:   auditlog.ChangeEnabled,
	}))
	require.NoError(t, audit.Record(ctx, auditlog.Entry{
		TenantID: "tenant-2",
		ActorID:  "user-9",
		ActionID: roles.ActionTaskCreate,
		Change:   auditlog.ChangeDisabled,
	}))

	store := startedStore(t, roles.RoleOwner)
	srv := serveWithStore(t, store, flagadmin.WithAuditReader(audit))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Entries []auditlog.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1, "history is scoped to the session tenant")
	assert.Equal(t, "tenant-1", body.Entries[0].TenantID)
}

func TestHandler_AuditHistoryForbidden(t *testing.T) {
	t.Parallel()

	store := startedStore(t, roles.RoleTeamMember)
	srv := serveWithStore(t, store, flagadmin.WithAuditReader(auditlog.NewMemoryStorage()))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
