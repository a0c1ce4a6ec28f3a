package workspace

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// SplitRecipients splits a comma-separated field and trims every entry.
// Empty entries are kept so that validation can report them.
func SplitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// ParseRecipients splits raw and validates every entry. It stops at the first
// invalid entry and returns an *EmailFormatError naming it.
func ParseRecipients(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoRecipients
	}
	list := SplitRecipients(raw)
	for _, r := range list {
		if !ValidEmail(r) {
			return nil, &EmailFormatError{Entry: r}
		}
	}
	return list, nil
}
