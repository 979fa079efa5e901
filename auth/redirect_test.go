package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveRedirectURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/auth/mock", nil)

	cases := []struct {
		target string
		want   string
	}{
		{"https://localhost/register", "https://localhost/register"},
		{"http://example.com/signup", "http://example.com/signup"},
		{"/register", "/register"},
		{"register", "/auth/register"},
		{"  /register  ", "/register"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := resolveRedirectURL(req, tc.target); got != tc.want {
			t.Fatalf("resolve %q: got %q want %q", tc.target, got, tc.want)
		}
	}
}

func TestResolveRedirectURL_NilRequest(t *testing.T) {
	if got := resolveRedirectURL(nil, "register"); got != "/register" {
		t.Fatalf("expected root resolution without a request, got %q", got)
	}
}
