package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

// failedTags returns the failed validation tags by field.
func failedTags(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	tags := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		tags[fe.Field()] = fe.Tag()
	}
	return tags
}

func TestNewUser_validation(t *testing.T) {
	validate := newValidator()

	saved := commonPasswords
	commonPasswords = []string{"p@ssw0rd!x"}
	t.Cleanup(func() { commonPasswords = saved })

	valid := func(mutate func(nu *NewUser)) NewUser {
		nu := NewUser{
			Name:            "Ainhoa",
			Username:        "ainhoa",
			Email:           "ainhoa@test.es",
			Password:        "Kj8#mQz!",
			PasswordConfirm: "Kj8#mQz!",
			Roles:           []string{RoleManager},
		}
		if mutate != nil {
			mutate(&nu)
		}
		return nu
	}
	pwd := func(p string) func(nu *NewUser) {
		return func(nu *NewUser) {
			nu.Password = p
			nu.PasswordConfirm = p
		}
	}

	tests := []struct {
		name string
		nu   NewUser
		want map[string]string
	}{
		{name: "valid", nu: valid(nil)},
		{name: "email only", nu: valid(func(nu *NewUser) { nu.Username = "" })},
		{name: "no username nor email", nu: valid(func(nu *NewUser) { nu.Username, nu.Email = "", "" }), want: map[string]string{"username": usernameOrEmailTag, "email": usernameOrEmailTag}},
		{name: "invalid role", nu: valid(func(nu *NewUser) { nu.Roles = []string{"admin"} }), want: map[string]string{"roles": allRolesTag}},
		{name: "password mismatch", nu: valid(func(nu *NewUser) { nu.PasswordConfirm = "other" }), want: map[string]string{"password_confirm": "eqfield"}},
		{name: "short password", nu: valid(pwd("Aa1!")), want: map[string]string{"password": pwdMinLenTag}},
		{name: "password with space", nu: valid(pwd("Aa1! bcdef")), want: map[string]string{"password": pwdNoSpaceTag}},
		{name: "numeric password", nu: valid(pwd("1234567890")), want: map[string]string{"password": pwdNotAllNumTag}},
		{name: "simple password", nu: valid(pwd("abcdefgh1")), want: map[string]string{"password": pwdComplexityTag}},
		{name: "password similar to username", nu: valid(pwd("Ainhoa#1")), want: map[string]string{"password": pwdAttrSimTag}},
		{name: "common password", nu: valid(pwd("P@ssw0rd!X")), want: map[string]string{"password": pwdNoCommonTag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failedTags(t, validate.Struct(tt.nu)))
		})
	}
}

func TestUpdateUser_validation(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name string
		uu   UpdateUser
		want map[string]string
	}{
		{name: "no password", uu: UpdateUser{Name: "Ainhoa", Username: "ainhoa"}},
		{name: "password without confirmation", uu: UpdateUser{Name: "Ainhoa", Password: "Kj8#mQz!"}, want: map[string]string{"password_confirm": "required_with"}},
		{name: "weak password", uu: UpdateUser{Name: "Ainhoa", Password: "weak", PasswordConfirm: "weak"}, want: map[string]string{"password": pwdMinLenTag}},
		{name: "invalid username", uu: UpdateUser{Name: "Ainhoa", Username: "a-b"}, want: map[string]string{"username": "min"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failedTags(t, validate.Struct(tt.uu)))
		})
	}
}
