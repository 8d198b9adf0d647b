package auth

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phone62Pattern = regexp.MustCompile(`^62[0-9]{9,14}$`)
	otpPattern     = regexp.MustCompile(`^[0-9]{4}$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{6}$`)
)

// FieldErrors maps form field names to user-facing messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator checks portal form input.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the portal's custom rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "phone62", matches(phone62Pattern))
	mustRegister(v, "otp", matches(otpPattern))
	mustRegister(v, "pin", matches(pinPattern))

	// Report errors under the form field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// mustRegister panics when a rule cannot be registered, so a broken rule set
// fails at startup instead of letting every form through.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("[auth NewValidator] registering %q: %v", tag, err))
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// ValidatePhone reports whether phone is an Indonesian number in 62 format.
func ValidatePhone(phone string) bool {
	return phone62Pattern.MatchString(phone)
}

// Struct validates s and returns FieldErrors for rule violations.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("[auth Validator] %w", err)
	}
	fe := make(FieldErrors, len(verrs))
	for _, e := range verrs {
		if _, seen := fe[e.Field()]; !seen {
			fe[e.Field()] = message(e)
		}
	}
	return fe
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "Wajib diisi"
	case "phone62":
		return "Nomor telepon harus diawali 62 dan berisi 11-16 digit"
	case "otp":
		return "Kode OTP harus 4 digit angka"
	case "pin":
		return "PIN harus 6 digit angka"
	case "eqfield":
		return "Konfirmasi PIN tidak cocok"
	case "email":
		return "Format email tidak valid"
	case "min":
		return fmt.Sprintf("Minimal %s karakter", e.Param())
	case "max":
		return fmt.Sprintf("Maksimal %s karakter", e.Param())
	case "len":
		return fmt.Sprintf("Harus %s karakter", e.Param())
	case "numeric":
		return "Hanya boleh berisi angka"
	default:
		return "Nilai tidak valid"
	}
}
