package signin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeReturnURL(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     string
		replaced bool
	}{
		{"empty defaults home", "", "/", false},
		{"plain path", "/account/orders", "/account/orders", false},
		{"path with query", "/search?q=x&page=2", "/search?q=x&page=2", false},
		{"root", "/", "/", false},
		{"absolute http", "http://evil.test/", "/", true},
		{"absolute https", "https://evil.test/x", "/", true},
		{"protocol relative", "//evil.test", "/", true},
		{"backslash escape", "/\\evil.test", "/", true},
		{"embedded backslash", "/a\\b", "/", true},
		{"no leading slash", "account", "/", true},
		{"scheme without slashes", "javascript:alert(1)", "/", true},
		{"crlf", "/a\r\nSet-Cookie: x", "/", true},
		{"whitespace only", "   ", "/", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, replaced := NormalizeReturnURL(tc.in, "/")
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.replaced, replaced)
		})
	}
}

func TestNormalizeReturnURLCustomHome(t *testing.T) {
	got, replaced := NormalizeReturnURL("https://evil.test", "/dashboard")
	assert.Equal(t, "/dashboard", got)
	assert.True(t, replaced)

	got, replaced = NormalizeReturnURL("", "/dashboard")
	assert.Equal(t, "/dashboard", got)
	assert.False(t, replaced)
}
