package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const base = "https://lystaria.im"

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		base string
		want string
	}{
		{"empty", "", base, ""},
		{"blank", "   ", base, ""},
		{"absolute https", "https://cdn.example.com/a.png", base, "https://cdn.example.com/a.png"},
		{"absolute http upper", "HTTP://cdn.example.com/a.png", base, "HTTP://cdn.example.com/a.png"},
		{"root relative", "/images/a.png", base, "https://lystaria.im/images/a.png"},
		{"root relative with trailing base slash", "/images/a.png", base + "/", "https://lystaria.im/images/a.png"},
		{"relative", "images/a.png", base, "https://lystaria.im/images/a.png"},
		{"trimmed", "  /a  ", base, "https://lystaria.im/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AbsoluteURL(tt.in, tt.base))
		})
	}
}

func TestAbsoluteURL_Idempotent(t *testing.T) {
	inputs := []string{"", " ", "a", "/a", "a/b/c.png", "https://x.y/z", "http://x", "../up", "?q=1", "#frag", "mailto:me@x.y"}

	for _, in := range inputs {
		once := AbsoluteURL(in, base)
		assert.Equal(t, once, AbsoluteURL(once, base), "input %q", in)
	}
}

func TestIsHTTPURL(t *testing.T) {
	assert.True(t, IsHTTPURL("https://example.com/blog/a"))
	assert.True(t, IsHTTPURL("http://example.com"))
	assert.False(t, IsHTTPURL(""))
	assert.False(t, IsHTTPURL("/blog/a"))
	assert.False(t, IsHTTPURL("ftp://example.com/a"))
	assert.False(t, IsHTTPURL("https://"))
	assert.False(t, IsHTTPURL("not a url"))
	assert.False(t, IsHTTPURL("http://[::1"))
}
