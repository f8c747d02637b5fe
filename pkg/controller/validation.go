package controller

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/crudkit/crudkit/pkg/apperror"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Validator lets request DTOs carry their own validation rules.
// Bind and ValidateDTO call it when implemented.
type Validator interface {
	Validate() error
}

// Bind decodes the request body into v and validates the result.
// Decode and validation failures both surface as ValidationError, so
// handlers can hand them straight to the Normalizer.
func Bind(c router.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperror.NewValidation("invalid request body").WithDetails(map[string]interface{}{
			"cause": err.Error(),
		})
	}
	return ValidateDTO(v)
}

// ValidateDTO validates a request DTO. DTOs implementing Validator are
// asked directly; plain structs get a minimal required-tag check.
func ValidateDTO(dto interface{}) error {
	if dto == nil {
		return apperror.NewValidation("request body cannot be empty")
	}
	value := reflect.ValueOf(dto)
	if value.Kind() == reflect.Ptr && value.IsNil() {
		return apperror.NewValidation("request body cannot be empty")
	}

	if validator, ok := dto.(Validator); ok {
		if err := validator.Validate(); err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				return err
			}
			return apperror.NewValidation(err.Error())
		}
		return nil
	}

	return validateStruct(value)
}

// validateStruct checks `validate:"required"` fields on plain structs.
// DTOs with real rules implement Validator instead.
func validateStruct(value reflect.Value) error {
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}

	valueType := value.Type()
	var missing []string
	for i := 0; i < value.NumField(); i++ {
		fieldType := valueType.Field(i)
		if !fieldType.IsExported() {
			continue
		}
		tag := fieldType.Tag.Get("validate")
		if tag == "" || !strings.Contains(tag, "required") {
			continue
		}
		if isZeroValue(value.Field(i)) {
			missing = append(missing, fmt.Sprintf("field '%s' is required", fieldType.Name))
		}
	}

	if len(missing) > 0 {
		return apperror.NewValidation("validation failed").WithDetails(map[string]interface{}{
			"errors": missing,
		})
	}
	return nil
}

// isZeroValue reports whether v holds the zero value for its type.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	case reflect.Struct:
		return v.IsZero()
	default:
		return false
	}
}
