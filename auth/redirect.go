package auth

import (
	"net/http"
	"path"
	"strings"
)

// resolveRedirectURL applies original-destination semantics to a configured
// redirect target: absolute URLs pass through unchanged, root-relative paths
// are used as-is, and bare relative paths resolve against the directory of
// the current request path.
func resolveRedirectURL(r *http.Request, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if strings.HasPrefix(target, "/") {
		return target
	}
	base := "/"
	if r != nil && r.URL != nil {
		base = path.Dir(r.URL.Path)
	}
	return path.Join(base, target)
}
