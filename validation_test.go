package accounts_test

import (
	"testing"

	"github.com/converse-im/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Password1!", false},
		{"valid with symbol in middle", "aB3#defgh", false},
		{"missing uppercase", "password1!", true},
		{"missing lowercase", "PASSWORD1!", true},
		{"missing digit", "Password!!", true},
		{"missing symbol", "Password12", true},
		{"too short", "Pa1!x", true},
		{"too long", "Password1!Password1!x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.ValidatePasswordStrength(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNoForbiddenChars(t *testing.T) {
	assert.NoError(t, accounts.ValidateNoForbiddenChars("Jane Doe"))
	assert.NoError(t, accounts.ValidateNoForbiddenChars("jane.doe+chat@example.com"))

	for _, c := range "|!{}()&=[]<>" {
		err := accounts.ValidateNoForbiddenChars("jane" + string(c) + "doe")
		assert.Error(t, err, "expected %q to be rejected", c)
	}
}

func TestValidateEmailShape(t *testing.T) {
	valid := []string{
		"jane@example.com",
		"jane.doe@mail.example.org",
		"j@x.co",
	}
	for _, email := range valid {
		assert.NoError(t, accounts.ValidateEmailShape(email), email)
	}

	invalid := []string{
		"",
		"janeexample.com",
		"jane@example",
		"jane doe@example.com",
		"@example.com",
		"jane@",
	}
	for _, email := range invalid {
		assert.Error(t, accounts.ValidateEmailShape(email), email)
	}
}

func TestValidateStringEquals(t *testing.T) {
	rule := accounts.ValidateStringEquals("Password1!")
	assert.NoError(t, rule("Password1!"))
	assert.Error(t, rule("Password2!"))
}

func TestRegisterInputValidate(t *testing.T) {
	valid := accounts.RegisterInput{
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		Password:        "Password1!",
		ConfirmPassword: "Password1!",
		ImageName:       "avatar.png",
		Image:           []byte{0x89, 0x50},
	}
	assert.NoError(t, valid.Validate())

	t.Run("mismatched confirmation", func(t *testing.T) {
		input := valid
		input.ConfirmPassword = "Password2!"
		assert.Error(t, input.Validate())
	})

	t.Run("forbidden chars in name", func(t *testing.T) {
		input := valid
		input.Name = "Jane<script>"
		assert.Error(t, input.Validate())
	})

	t.Run("missing image", func(t *testing.T) {
		input := valid
		input.Image = nil
		assert.Error(t, input.Validate())
	})
}
