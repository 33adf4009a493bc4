package httpclient

import (
	"net/url"
	"strings"
)

// sensitiveParams are matched case-insensitively as substrings of query
// parameter names: "key" catches the long-poll session key and "token" the
// access_token appended by the API client.
var sensitiveParams = []string{"token", "key", "secret", "password", "auth"}

const redacted = "[REDACTED]"

// sanitizeURL renders u for logs with sensitive query values and any
// userinfo password replaced.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	safe := *u
	if _, hasPassword := u.User.Password(); hasPassword {
		safe.User = url.UserPassword(u.User.Username(), redacted)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveParam(name) {
				q.Set(name, redacted)
			}
		}
		safe.RawQuery = q.Encode()
	}
	return safe.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveParams {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
