// Package flagstore binds one authenticated session to its live permission
// state. A Store subscribes to the tenant's flag document and the user's
// override document, rebuilds a permission checker on every observed change,
// and falls back to a persisted offline snapshot or hardcoded role defaults
// when the backing store is unreachable. Flag mutations go through ToggleFlag,
// which gates on the feature management permission and writes an audit trail.
package flagstore
