package accounts

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// forbiddenChars are rejected in names and emails before any lookup runs.
const forbiddenChars = "|!{}()&=[]<>"

// emailShapeRe is the basic local@domain.tld shape check. Deliverability
// is the mailer's problem, not ours.
var emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateNoForbiddenChars rejects values containing characters we never
// want in identity fields.
func ValidateNoForbiddenChars(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, forbiddenChars) {
		return errors.New("contains an invalid character")
	}
	return nil
}

// ValidateEmailShape enforces the local@domain.tld shape.
func ValidateEmailShape(value any) error {
	s, _ := value.(string)
	if !emailShapeRe.MatchString(s) {
		return errors.New("must be a valid email address")
	}
	return nil
}

// ValidatePasswordStrength enforces the password policy: at least one
// uppercase letter, one lowercase letter, one digit and one symbol,
// between 8 and 20 characters.
func ValidatePasswordStrength(value any) error {
	s, _ := value.(string)

	if len(s) < 8 || len(s) > 20 {
		return errors.New("must be between 8 and 20 characters")
	}

	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	switch {
	case !upper:
		return errors.New("must contain at least one uppercase letter")
	case !lower:
		return errors.New("must contain at least one lowercase letter")
	case !digit:
		return errors.New("must contain at least one digit")
	case !symbol:
		return errors.New("must contain at least one symbol")
	}

	return nil
}

// ValidateStringEquals builds a rule asserting the value equals expected.
func ValidateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New("passwords do not match")
		}
		return nil
	}
}
