package middleware

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"b2bmarket/internal/gst"
	"b2bmarket/internal/models"
)

var (
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	mobilePattern  = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

func ValidPincode(s string) bool { return pincodePattern.MatchString(s) }
func ValidMobile(s string) bool  { return mobilePattern.MatchString(s) }

// RegisterValidators adds the pincode, mobile, usertype and gstin binding tags
// to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	rules := map[string]validator.Func{
		"pincode": func(fl validator.FieldLevel) bool { return ValidPincode(fl.Field().String()) },
		"mobile":  func(fl validator.FieldLevel) bool { return ValidMobile(fl.Field().String()) },
		"gstin":   func(fl validator.FieldLevel) bool { return gst.Valid(gst.Normalize(fl.Field().String())) },
		"usertype": func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case models.RoleBuyer, models.RoleSeller:
				return true
			}
			return false
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}
