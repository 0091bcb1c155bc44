package roles

import "errors"

var (
	// ErrUnknownRole is returned when a role name is outside the known set.
	ErrUnknownRole = errors.New("roles.unknown_role")

	// ErrInvalidDefaults is returned when a defaults document cannot be parsed.
	ErrInvalidDefaults = errors.New("roles.invalid_defaults")
)
