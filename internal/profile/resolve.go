package profile

import (
	"fmt"
	"os"
	"regexp"
)

// DefaultName is used when neither a flag nor ORDERBOT_PROFILE selects one.
const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Resolve picks the profile name: flag, then ORDERBOT_PROFILE, then DefaultName.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv("ORDERBOT_PROFILE"); env != "" {
		return env
	}
	return DefaultName
}

// ValidateName rejects names that are unsafe as a directory component.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match %s", name, nameRegexp)
	}
	return nil
}
