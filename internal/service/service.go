package service

import (
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkInput validates a request DTO against its struct tags.
func checkInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// now is truncated to the precision every storage engine keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
