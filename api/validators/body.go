package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// Ids and amounts validate as strings; a nil uuid fails "required".
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		switch value := field.Interface().(type) {
		case uuid.UUID:
			if value == uuid.Nil {
				return ""
			}
			return value.String()
		case decimal.Decimal:
			return value.String()
		}
		return nil
	}, uuid.UUID{}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		switch value := fl.Field().Interface().(type) {
		case decimal.Decimal:
			return value.IsPositive()
		case string:
			d, err := decimal.NewFromString(value)
			return err == nil && d.IsPositive()
		}
		return false
	})
	return v
}

// MaxBodyBytes caps request bodies here and in the idempotency middleware.
// The largest payload is a checkout with its item list.
const MaxBodyBytes = 64 << 10

// DecodeJSONBody decodes exactly one JSON object into dest and validates it.
// Decode failures are reported per field where the decoder allows it.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return decodeError(err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidBody("body", "must contain a single JSON object")
	}
	return Struct(dest)
}

func decodeError(err error) *pkgerrors.Error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return invalidBody("body", "is required")
	case errors.As(err, &sizeErr):
		return invalidBody("body", fmt.Sprintf("must not exceed %d bytes", sizeErr.Limit))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return invalidBody("body", "is not valid JSON")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return invalidBody(typeErr.Field, "has the wrong type")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return invalidBody(field, "is not allowed")
	}
	// Custom unmarshalers (uuid, decimal) report their own messages.
	return invalidBody("body", err.Error())
}

func invalidBody(field, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").WithDetails(map[string]string{field: reason})
}

// Struct validates an already decoded value.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Namespace()[strings.Index(fieldErr.Namespace(), ".")+1:]] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "decimal_gt0":
		return "must be a positive amount"
	}
	return "is invalid"
}
