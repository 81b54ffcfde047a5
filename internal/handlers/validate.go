package handlers

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidEmail = errors.New("invalid email address")

// local@domain.tld with no whitespace and exactly one @.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxEmailLen = 254

// normalizeEmail trims and lower-cases raw and checks its shape.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))

	if len(email) > maxEmailLen || !emailRe.MatchString(email) {
		return "", ErrInvalidEmail
	}

	return email, nil
}
