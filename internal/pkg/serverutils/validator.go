package serverutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs struct tag validation and flattens failures
// into one readable error.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, len(validationErrors))
	for i, fieldErr := range validationErrors {
		messages[i] = fmt.Sprintf("field '%s' failed on rule '%s'", fieldErr.Field(), fieldErr.Tag())
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}
