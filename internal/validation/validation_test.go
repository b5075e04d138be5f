package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	assert.True(t, New().Required("name", "ok").Valid())
	assert.False(t, New().Required("name", "").Valid())
	assert.False(t, New().Required("name", "   ").Valid())
}

func TestEmail(t *testing.T) {
	assert.True(t, New().Email("email", "agent@example.com").Valid())
	assert.True(t, New().Email("email", "first.last+tag@sub.example.co").Valid())
	assert.False(t, New().Email("email", "nope").Valid())
	assert.False(t, New().Email("email", "missing@tld").Valid())
	assert.False(t, New().Email("email", "@example.com").Valid())
}

func TestPassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"abcdef1x", true},
		{"longenough2", true},
		{"short1", false},
		{"onlyletters", false},
		{"12345678", false},
	}
	for _, tt := range tests {
		v := New().Password("password", tt.password)
		assert.Equal(t, tt.valid, v.Valid(), "password %q", tt.password)
	}
}

func TestOneOf(t *testing.T) {
	assert.True(t, New().OneOf("role", "admin", "admin", "agent").Valid())
	assert.False(t, New().OneOf("role", "root", "admin", "agent").Valid())
}

func TestErrorsAccumulate(t *testing.T) {
	v := New().
		Required("name", "").
		Email("email", "bad").
		MaxLength("subject", "aaaaaa", 3)
	assert.False(t, v.Valid())
	assert.Len(t, v.Errors(), 3)
	assert.Equal(t, "name: is required", v.Errors()[0].Error())
}

func TestNoScriptTags(t *testing.T) {
	assert.True(t, New().NoScriptTags("body", "plain text").Valid())
	assert.False(t, New().NoScriptTags("body", "<SCRIPT>alert(1)</script>").Valid())
	assert.False(t, New().NoScriptTags("body", "javascript:void(0)").Valid())
}
