// Package validate contains input checks shared by the services. Every
// failure is an apperr.ErrValidation.
package validate

import (
	"net/mail"
	"regexp"

	"github.com/DanielTwine/dloperOS/internal/apperr"
)

// nameRe keeps identifiers safe to use as a single path segment.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

func Username(s string) error {
	if !nameRe.MatchString(s) {
		return apperr.New(apperr.ErrValidation, "Invalid username")
	}
	return nil
}

// Name checks site and backup names.
func Name(s string) error {
	if !nameRe.MatchString(s) {
		return apperr.New(apperr.ErrValidation, "Invalid name")
	}
	return nil
}

// Email accepts a bare address ("a@b.c"), not a display-name form.
func Email(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return apperr.New(apperr.ErrValidation, "Invalid email address")
	}
	return nil
}

func Password(s string) error {
	if s == "" {
		return apperr.New(apperr.ErrValidation, "Password is required")
	}
	return nil
}
