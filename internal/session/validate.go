package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.textdeck/sessions, so
// they are restricted to a safe lowercase subset.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names unusable as a session directory.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("session name %q: only lowercase letters, digits, '-' and '_' are allowed, 1-64 chars", name)
	}
	return nil
}
