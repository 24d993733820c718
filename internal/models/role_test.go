package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleFor_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"user-10", "user-9"},
		{"a", "aa"},
		{"Zed", "abe"},
		{"550e8400-e29b-41d4-a716-446655440000", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
	}

	for _, p := range pairs {
		a, b := p[0], p[1]
		ra, rb := RoleFor(a, b), RoleFor(b, a)
		assert.NotEqual(t, ra, rb, "%s vs %s", a, b)
		assert.Equal(t, ra == RoleCaller, rb == RoleCallee)
		for i := 0; i < 3; i++ {
			assert.Equal(t, ra, RoleFor(a, b))
		}
	}
	assert.Equal(t, RoleCaller, RoleFor("alice", "bob"))
}
