package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldline/fieldline/pkg/permission"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	perms := map[string]bool{"flag_a": true, "flag_b": false}
	s := permission.NewStatic(perms)

	// Mutating the source map after construction must not leak in.
	perms["flag_a"] = false

	assert.True(t, s.Can("flag_a"))
	assert.False(t, s.Can("flag_b"))
	assert.False(t, s.Can("unknown"))

	assert.True(t, s.CanContext("flag_a", permission.RuleContext{"task_owner_id": "x"}),
		"context is ignored in offline mode")

	assert.Equal(t, map[string]bool{"flag_a": true, "unknown": false}, s.CanEach("flag_a", "unknown"))
}

func TestStatic_Evaluate(t *testing.T) {
	t.Parallel()

	s := permission.NewStatic(map[string]bool{"flag_a": true, "flag_b": false})

	d := s.Evaluate("flag_a", nil)
	assert.True(t, d.Allowed)
	assert.Equal(t, permission.SourceCache, d.Source)

	d = s.Evaluate("flag_b", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.SourceCache, d.Source)

	d = s.Evaluate("unknown", nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.SourceNone, d.Source)
}

func TestStatic_AllPermissions(t *testing.T) {
	t.Parallel()

	s := permission.NewStatic(map[string]bool{"flag_a": true})

	perms := s.AllPermissions()
	assert.Equal(t, map[string]bool{"flag_a": true}, perms)

	// Returned map is a copy.
	perms["flag_a"] = false
	assert.True(t, s.Can("flag_a"))

	empty := permission.NewStatic(nil)
	assert.NotNil(t, empty.AllPermissions())
}
