// Package inputval validates decoded request structs with
// go-playground/validator and reports failures by their JSON field names,
// split into missing and malformed fields.
package inputval

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/dalemusser/chimeo/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the project's custom tags:
//
//	orgtype  one of models.OrgTypes
//	usecase  one of models.UseCases
//	posint   a base-10 integer > 0 (string fields from forms)
//	tier     one of models.Tiers
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("orgtype", func(fl validator.FieldLevel) bool {
			return models.IsOrgType(fl.Field().String())
		})
		_ = v.RegisterValidation("usecase", func(fl validator.FieldLevel) bool {
			return models.IsUseCase(fl.Field().String())
		})
		_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
			return models.IsTier(fl.Field().String())
		})
		_ = v.RegisterValidation("posint", func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(fl.Field().String())
			return err == nil && n > 0
		})
		instance = v
	})
	return instance
}

// Result lists failing fields in struct order.
type Result struct {
	Missing []string
	Invalid []string
}

// OK reports whether nothing failed.
func (r Result) OK() bool {
	return len(r.Missing) == 0 && len(r.Invalid) == 0
}

// Check validates s. Failures of required-style tags are reported as
// missing; every other failure as invalid.
func Check(s any) Result {
	err := Validator().Struct(s)
	if err == nil {
		return Result{}
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Result{Invalid: []string{err.Error()}}
	}

	var res Result
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			res.Missing = append(res.Missing, fe.Field())
		} else {
			res.Invalid = append(res.Invalid, fe.Field())
		}
	}
	return res
}

// IsValidEmail reports whether s is a single bare address.
func IsValidEmail(s string) bool {
	return Validator().Var(strings.TrimSpace(s), "required,email") == nil
}
