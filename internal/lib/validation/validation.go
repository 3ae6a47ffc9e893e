package validation

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// phonePattern accepts "(11)99999-9999", "1199999-9999", "(11)9999-9999" and "119999-9999".
var phonePattern = regexp.MustCompile(`^(\(\d{2}\)|\d{2})\d{4,5}-?\d{4}$`)

// New returns a validator that reports fields by their JSON names and knows
// the "phone" and "maxbytes" tags. maxbytes limits the UTF-8 length, which is
// what bcrypt counts.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}

		return name
	})

	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}

		return len(fl.Field().String()) <= limit
	})

	return v
}
