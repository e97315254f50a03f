package validation

import (
	stderrors "errors"
	"net/http"
	"testing"

	"geofriends/models"
	"geofriends/utils/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func validInput() models.FriendInput {
	return models.FriendInput{
		FirstName: str("Jan"),
		LastName:  str("Olsen"),
		Email:     str("jan@b.dk"),
		Password:  str("secret"),
	}
}

func requireValidationError(t *testing.T, err error, detail string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *errors.APIError
	require.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Details, detail)
}

func TestValidateCreate_Valid(t *testing.T) {
	in := validInput()
	in.Email = str("  Jan@B.dk ")
	in.FirstName = str("  Jan ")

	out, err := ValidateCreate(in)
	require.NoError(t, err)
	assert.Equal(t, "jan@b.dk", *out.Email)
	assert.Equal(t, "Jan", *out.FirstName)
	assert.Equal(t, "secret", *out.Password)
	assert.Nil(t, out.Role)
}

func TestValidateCreate_RejectsRole(t *testing.T) {
	in := validInput()
	in.Role = str("admin")

	_, err := ValidateCreate(in)
	requireValidationError(t, err, "role is not allowed")
}

func TestValidateCreate_RejectsRoleEvenWhenUser(t *testing.T) {
	in := validInput()
	in.Role = str("user")

	_, err := ValidateCreate(in)
	requireValidationError(t, err, "role is not allowed")
}

func TestValidateCreate_MissingFields(t *testing.T) {
	_, err := ValidateCreate(models.FriendInput{})
	requireValidationError(t, err, "firstName is required")
	requireValidationError(t, err, "lastName is required")
	requireValidationError(t, err, "email is required")
	requireValidationError(t, err, "password is required")
}

func TestValidateCreate_FieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.FriendInput)
		detail string
	}{
		{"bad email", func(in *models.FriendInput) { in.Email = str("not-an-email") }, "email must be a valid email address"},
		{"display name email", func(in *models.FriendInput) { in.Email = str("Jan <jan@b.dk>") }, "email must be a valid email address"},
		{"short password", func(in *models.FriendInput) { in.Password = str("abc") }, "password must be between"},
		{"blank first name", func(in *models.FriendInput) { in.FirstName = str("   ") }, "firstName must be between"},
		{"long last name", func(in *models.FriendInput) {
			in.LastName = str("abcdefghijabcdefghijabcdefghijabcdefghijk")
		}, "lastName must be between"},
		{"markup in name", func(in *models.FriendInput) { in.FirstName = str("<b>Jan</b>") }, "firstName must not contain markup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := ValidateCreate(in)
			requireValidationError(t, err, tt.detail)
		})
	}
}

func TestValidateCreate_AllowsPlainPunctuationInNames(t *testing.T) {
	in := validInput()
	in.LastName = str("Træben & Søn")

	out, err := ValidateCreate(in)
	require.NoError(t, err)
	assert.Equal(t, "Træben & Søn", *out.LastName)
}

func TestValidateEdit_PartialRecord(t *testing.T) {
	out, err := ValidateEdit(models.FriendInput{LastName: str("Trold")}, false)
	require.NoError(t, err)
	assert.Equal(t, "Trold", *out.LastName)
	assert.Nil(t, out.FirstName)
	assert.Nil(t, out.Password)
}

func TestValidateEdit_EmptyRecord(t *testing.T) {
	_, err := ValidateEdit(models.FriendInput{}, true)
	requireValidationError(t, err, "no fields to update")
}

func TestValidateEdit_Role(t *testing.T) {
	_, err := ValidateEdit(models.FriendInput{Role: str("admin")}, false)
	requireValidationError(t, err, "role is not allowed")

	_, err = ValidateEdit(models.FriendInput{Role: str("superuser")}, true)
	requireValidationError(t, err, "role must be")

	out, err := ValidateEdit(models.FriendInput{Role: str(" Admin ")}, true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, *out.Role)
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"user.name+tag@example.co.uk", true},
		{"tt@mail.com", true},
		{"", false},
		{"user", false},
		{"user@", false},
		{"@example.com", false},
		{"User Name <user@example.com>", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidEmail(tt.email))
		})
	}
}
