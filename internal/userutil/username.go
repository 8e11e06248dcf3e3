package userutil

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var invalidUsernameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// currentUserFn is a test seam for user.Current.
var currentUserFn = user.Current

// SanitizeUsername normalizes username-like values used in pipe, socket and
// mutex names.
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidUsernameRune.ReplaceAllString(value, "_")
}

// CurrentUsername returns the sanitized name of the user running the
// process: USERNAME (Windows), then USER (unix), then the account database.
func CurrentUsername() string {
	for _, key := range []string{"USERNAME", "USER"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return SanitizeUsername(v)
		}
	}
	if current, err := currentUserFn(); err == nil {
		return SanitizeUsername(current.Username)
	}
	return SanitizeUsername("")
}

// InstanceName joins the application prefix and the current user, giving
// every user their own daemon, control channel and lock.
func InstanceName(prefix string) string {
	return prefix + "-" + CurrentUsername()
}
