package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kapu/namedivider-go/pkg/errors"
)

// MaxNamesPerRequest mirrors the server's per-request limit.
const MaxNamesPerRequest = 1000

// ValidateNames rejects input the server must never see: an empty list, a
// list over MaxNamesPerRequest, or any blank or non-UTF-8 name.
func ValidateNames(names []string) error {
	if len(names) == 0 {
		return errors.NewValidationError("names must not be empty", "names", names)
	}
	if len(names) > MaxNamesPerRequest {
		return errors.NewValidationError(
			fmt.Sprintf("at most %d names can be divided per request", MaxNamesPerRequest),
			"names",
			len(names),
		)
	}
	for i, name := range names {
		field := fmt.Sprintf("names[%d]", i)
		if !utf8.ValidString(name) {
			return errors.NewValidationError("name is not valid UTF-8", field, name)
		}
		if strings.TrimSpace(name) == "" {
			return errors.NewValidationError("name must not be empty", field, name)
		}
	}
	return nil
}

func ValidateMode(mode Mode) error {
	if !mode.IsValid() {
		return errors.NewValidationError("mode must be 'basic' or 'gbdt'", "mode", string(mode))
	}
	return nil
}

// Validate checks the request as it will be sent. An empty mode is accepted
// because it is omitted on the wire and the server defaults it.
func (r DivideRequest) Validate() error {
	if err := ValidateNames(r.Names); err != nil {
		return err
	}
	return ValidateMode(r.Mode.OrDefault())
}
