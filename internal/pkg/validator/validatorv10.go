package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/mailrelay/internal/pkg/strcase"
)

// ErrTranslatorNotFound is returned when the English translator cannot be loaded.
var ErrTranslatorNotFound = errors.New("validator: translator not found")

// V10ValidationError maps snake_case field names to readable messages.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string { return vs }

// rule is a custom validation tag with its English message. {0} is the field name.
type rule struct {
	tag     string
	message string
	check   func(s string) bool
}

var mailRules = []rule{
	{
		tag:     "mailbox",
		message: "{0} must be a valid email address",
		check: func(s string) bool {
			_, err := netmail.ParseAddress(s)
			return err == nil
		},
	},
	{
		tag:     "header_name",
		message: "{0} must be a valid header name",
		check:   isHeaderName,
	},
	{
		tag:     "header_value",
		message: "{0} must not contain line breaks",
		check:   func(s string) bool { return !strings.ContainsAny(s, "\r\n") },
	},
}

// isHeaderName reports whether s is an RFC 5322 field name: printable
// US-ASCII without colon or space.
func isHeaderName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c < 33 || c > 126 || c == ':' {
			return false
		}
	}
	return true
}

// V10Validator implements Validator using go-playground/validator v10 with
// English messages.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	trans, ok := ut.New(enLang, enLang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("validator: register translations: %w", err)
	}

	for _, r := range mailRules {
		if err := register(validate, trans, r); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: validate, translator: trans}, nil
}

func register(validate *validator.Validate, trans ut.Translator, r rule) error {
	check := r.check
	err := validate.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && check(s)
	})
	if err != nil {
		return fmt.Errorf("validator: register %s: %w", r.tag, err)
	}

	err = validate.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error { return t.Add(r.tag, r.message, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("failed to translate validation error", "tag", fe.Tag(), "error", err)
				return fe.Error()
			}
			return msg
		},
	)
	if err != nil {
		return fmt.Errorf("validator: translate %s: %w", r.tag, err)
	}
	return nil
}

// Validate checks a struct. Rule violations come back as V10ValidationError;
// any other error (a non-struct argument, say) is returned as is.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}
	return out
}
