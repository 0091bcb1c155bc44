package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// TenantID records the tenant identifier under the key "tenant_id".
func TenantID(id string) slog.Attr {
	return slog.String("tenant_id", id)
}

// Role records a role name under the key "role".
func Role(role any) slog.Attr {
	return slog.Any("role", role)
}

// Action records a permission action identifier under the key "action".
func Action(id string) slog.Attr {
	return slog.String("action", id)
}

// Path records a document path under the key "path".
func Path(path string) slog.Attr {
	return slog.String("path", path)
}
