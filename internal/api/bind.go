package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps decode request bodies. A telegram in any form is tiny.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// prefer json tag names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		name, _, _ := strings.Cut(tag, ",")
		return name
	})
	return v
}

// bindJSON decodes exactly one JSON object from the body into dst and
// validates it. The returned error is safe to show to clients.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: unexpected trailing data")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("validation: %s", fieldMessage(verrs[0]))
		}
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "required_without":
		return fe.Field() + " is required when " + lowerFirst(fe.Param()) + " is missing"
	case "excluded_with":
		return fe.Field() + " cannot be combined with " + lowerFirst(fe.Param())
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "excludesall":
		return fe.Field() + " must not contain any of " + fe.Param()
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}

// lowerFirst turns a Go field name param into its json form.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
