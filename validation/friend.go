// Package validation schema-checks incoming friend records and coordinates
// before they reach the facades.
package validation

import (
	"fmt"
	"html"
	"net/mail"
	"strings"
	"unicode/utf8"

	"geofriends/models"
	"geofriends/utils/errors"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MinNameLength     = 1
	MaxNameLength     = 40
	MinPasswordLength = 4
	MaxPasswordLength = 60
)

var strict = bluemonday.StrictPolicy()

// ValidateCreate checks a registration record and returns a normalized copy.
// All fields are required and role must not be present.
func ValidateCreate(in models.FriendInput) (models.FriendInput, error) {
	var problems []string

	if in.Role != nil {
		problems = append(problems, "role is not allowed")
	}
	if in.FirstName == nil {
		problems = append(problems, "firstName is required")
	}
	if in.LastName == nil {
		problems = append(problems, "lastName is required")
	}
	if in.Email == nil {
		problems = append(problems, "email is required")
	}
	if in.Password == nil {
		problems = append(problems, "password is required")
	}

	out, fieldProblems := checkFields(in)
	problems = append(problems, fieldProblems...)
	if len(problems) > 0 {
		return models.FriendInput{}, errors.NewValidationError(problems)
	}
	out.Role = nil
	return out, nil
}

// ValidateEdit checks an edit record. Fields are optional but at least one
// must be present. Role is only accepted when allowRole is set, and then
// only a known role.
func ValidateEdit(in models.FriendInput, allowRole bool) (models.FriendInput, error) {
	var problems []string

	if in.FirstName == nil && in.LastName == nil && in.Email == nil && in.Password == nil && in.Role == nil {
		problems = append(problems, "no fields to update")
	}

	out, fieldProblems := checkFields(in)
	problems = append(problems, fieldProblems...)

	if in.Role != nil {
		switch {
		case !allowRole:
			problems = append(problems, "role is not allowed")
		case !IsValidRole(*in.Role):
			problems = append(problems, fmt.Sprintf("role must be %q or %q", models.RoleUser, models.RoleAdmin))
		default:
			role := strings.ToLower(strings.TrimSpace(*in.Role))
			out.Role = &role
		}
	}

	if len(problems) > 0 {
		return models.FriendInput{}, errors.NewValidationError(problems)
	}
	return out, nil
}

// checkFields validates and normalizes whichever fields are present.
func checkFields(in models.FriendInput) (models.FriendInput, []string) {
	var out models.FriendInput
	var problems []string

	if in.FirstName != nil {
		name, problem := checkName("firstName", *in.FirstName)
		if problem != "" {
			problems = append(problems, problem)
		}
		out.FirstName = &name
	}
	if in.LastName != nil {
		name, problem := checkName("lastName", *in.LastName)
		if problem != "" {
			problems = append(problems, problem)
		}
		out.LastName = &name
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if !IsValidEmail(email) {
			problems = append(problems, "email must be a valid email address")
		}
		out.Email = &email
	}
	if in.Password != nil {
		pw := *in.Password
		n := utf8.RuneCountInString(pw)
		if n < MinPasswordLength || n > MaxPasswordLength {
			problems = append(problems, fmt.Sprintf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength))
		}
		out.Password = &pw
	}
	return out, problems
}

func checkName(field, raw string) (string, string) {
	name := strings.TrimSpace(raw)
	if html.UnescapeString(strict.Sanitize(name)) != name {
		return name, field + " must not contain markup"
	}
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return name, fmt.Sprintf("%s must be between %d and %d characters", field, MinNameLength, MaxNameLength)
	}
	return name, ""
}

// NormalizeEmail trims and lowercases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail accepts a bare addr-spec; display-name forms are rejected.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && addr.Name == ""
}

// IsValidRole reports whether role names a known role.
func IsValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.RoleUser, models.RoleAdmin:
		return true
	}
	return false
}
