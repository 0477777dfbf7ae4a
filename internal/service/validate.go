package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so messages match the wire contract.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and merges extra field errors found by hand.
func validateStruct(s any, extra map[string]string) error {
	fields := make(map[string]string)
	for k, v := range extra {
		fields[k] = v
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.Internal(err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

const (
	maxPriceIntDigits = 12
	maxPriceDecimals  = 2
	maxPriceTextLen   = 32
)

// ParsePrice parses a price given as text. Non-numeric input and values outside the
// accepted range are validation errors.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxPriceTextLen {
		return decimal.Zero, apperr.Field("price", "is too long")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperr.Field("price", "must be a number")
	}
	if msg := priceRange(d); msg != "" {
		return decimal.Zero, apperr.Field("price", msg)
	}
	return d, nil
}

func checkPrice(price *decimal.Decimal) map[string]string {
	if price == nil {
		return map[string]string{"price": "is required"}
	}
	if msg := priceRange(*price); msg != "" {
		return map[string]string{"price": msg}
	}
	if price.IsNegative() {
		return map[string]string{"price": "must not be negative"}
	}
	return nil
}

// priceRange bounds a price by its coefficient and exponent alone. Any comparison
// before this point would expand a value like 1e9999999 to every digit.
func priceRange(d decimal.Decimal) string {
	digits := len(strings.TrimPrefix(d.Coefficient().String(), "-"))
	exp := int(d.Exponent())

	if exp > maxPriceIntDigits || digits+exp > maxPriceIntDigits {
		return fmt.Sprintf("must have at most %d digits before the decimal point", maxPriceIntDigits)
	}
	if exp < -maxPriceIntDigits-maxPriceDecimals {
		return fmt.Sprintf("must have at most %d decimal places", maxPriceDecimals)
	}
	// Bounded now; trailing zeros such as 1.500 are accepted.
	if !d.Equal(d.Truncate(maxPriceDecimals)) {
		return fmt.Sprintf("must have at most %d decimal places", maxPriceDecimals)
	}
	return ""
}
