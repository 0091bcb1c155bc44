package flagstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldline/fieldline/pkg/auditlog"
	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/fieldline/fieldline/pkg/permission"
	"github.com/fieldline/fieldline/pkg/roles"
)

type toggleParams struct {
	reason    string
	userAgent string
	expiresAt *time.Time
	metadata  *permission.FlagMetadata
	roles     []roles.Role
	users     []string
	excluded  []string
}

// ToggleOption attaches optional detail to a flag mutation.
type ToggleOption func(*toggleParams)

// WithToggleReason records why the flag was changed.
func WithToggleReason(reason string) ToggleOption {
	return func(p *toggleParams) { p.reason = reason }
}

// WithToggleUserAgent records the caller's user agent on the audit entry.
func WithToggleUserAgent(ua string) ToggleOption {
	return func(p *toggleParams) { p.userAgent = ua }
}

// WithToggleExpiry sets an expiry on the flag being written.
func WithToggleExpiry(at time.Time) ToggleOption {
	return func(p *toggleParams) { p.expiresAt = &at }
}

// WithToggleMetadata writes descriptive flag metadata alongside the toggle.
func WithToggleMetadata(md permission.FlagMetadata) ToggleOption {
	return func(p *toggleParams) { p.metadata = &md }
}

// WithTargetRoles sets which roles the flag applies to. A flag that targets
// neither roles nor users decides nothing, so new flags normally carry one of
// the targeting options.
func WithTargetRoles(rs ...roles.Role) ToggleOption {
	return func(p *toggleParams) { p.roles = rs }
}

// WithTargetUsers sets which individual users the flag applies to.
func WithTargetUsers(userIDs ...string) ToggleOption {
	return func(p *toggleParams) { p.users = userIDs }
}

// WithExcludedUsers sets users the flag always denies, regardless of
// targeting.
func WithExcludedUsers(userIDs ...string) ToggleOption {
	return func(p *toggleParams) { p.excluded = userIDs }
}

// ToggleFlag enables or disables a tenant flag for the session's tenant. The
// caller must hold the feature management permission; the write targets the
// shared flag document, so every session in the tenant sees it through its
// own subscription (including this one, which is why ToggleFlag does not
// mutate local state directly).
//
// Toggling to the current value is a valid write and still produces an audit
// record, classified as modified rather than enabled or disabled.
func (s *Store) ToggleFlag(ctx context.Context, actionID string, enabled bool, opts ...ToggleOption) error {
	s.mu.RLock()
	closed := s.closed
	prev, had := s.tenantFlags[actionID]
	s.mu.RUnlock()

	if closed {
		return ErrStoreClosed
	}
	if s.id.UserID == "" || s.id.TenantID == "" {
		return ErrNoSession
	}
	if err := validateActionID(actionID); err != nil {
		return err
	}
	if !s.Can(roles.ActionSettingsManageFeatures) {
		return ErrPermissionDenied
	}

	var params toggleParams
	for _, opt := range opts {
		opt(&params)
	}

	flag := map[string]any{
		"enabled":    enabled,
		"enabled_by": s.id.UserID,
		"enabled_at": s.now().UTC(),
	}
	if params.expiresAt != nil {
		flag["expires_at"] = params.expiresAt.UTC()
	}
	if params.roles != nil {
		flag["targeted_roles"] = roleStrings(params.roles)
	}
	if params.users != nil {
		flag["targeted_users"] = params.users
	}
	if params.excluded != nil {
		flag["excluded_users"] = params.excluded
	}
	if params.metadata != nil {
		flag["metadata"] = map[string]any{
			"description": params.metadata.Description,
			"category":    params.metadata.Category,
			"risk":        params.metadata.Risk,
		}
	}

	fields := map[string]any{
		fieldFlags: map[string]any{actionID: flag},
	}
	if err := s.docs.SetMerge(ctx, s.tenantPath, fields); err != nil {
		return errors.Join(ErrToggleFailed, err)
	}

	s.recordToggle(ctx, actionID, enabled, prev, had, flag, params)
	return nil
}

// recordToggle writes the audit entry for a successful toggle. Failures are
// logged and swallowed: the flag write already happened and must stand.
func (s *Store) recordToggle(ctx context.Context, actionID string, enabled bool, prev permission.TenantFlag, had bool, written map[string]any, params toggleParams) {
	if s.audit == nil {
		return
	}

	change := auditlog.ChangeModified
	if !had || prev.Enabled != enabled {
		if enabled {
			change = auditlog.ChangeEnabled
		} else {
			change = auditlog.ChangeDisabled
		}
	}

	entry := auditlog.Entry{
		TenantID:  s.id.TenantID,
		ActorID:   s.id.UserID,
		ActionID:  actionID,
		Change:    change,
		New:       written,
		Reason:    params.reason,
		UserAgent: params.userAgent,
		CreatedAt: s.now().UTC(),
	}
	if had {
		entry.Previous = map[string]any{
			"enabled":    prev.Enabled,
			"enabled_by": prev.EnabledBy,
		}
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Error("recording flag audit entry",
			logger.Component("flagstore"),
			logger.TenantID(s.id.TenantID),
			logger.Action(actionID),
			logger.Error(err))
	}
}

func roleStrings(rs []roles.Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// validateActionID rejects identifiers that cannot serve as document field
// names. The action vocabulary itself is open-ended.
func validateActionID(actionID string) error {
	if actionID == "" {
		return fmt.Errorf("%w: empty action id", ErrInvalidAction)
	}
	if strings.ContainsAny(actionID, "./$") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidAction, actionID)
	}
	return nil
}
