package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/money"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)
	utrRe        = regexp.MustCompile(`^[A-Za-z0-9]{6,30}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags used by the request bodies.
func RegisterValidators(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("safe_id", validateSafeID)
	_ = v.RegisterValidation("utr", validateUTR)
	_ = v.RegisterValidation("payment_mode", validatePaymentMode, true)
	_ = v.RegisterValidation("money", validateMoney, true)
}

// decimalValue lets tags see a decimal as its canonical string.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

// validateUTR accepts a bank reference of 6 to 30 letters and digits.
func validateUTR(fl validator.FieldLevel) bool {
	return utrRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validatePaymentMode accepts UPI, IMPS or NEFT in any case; empty means UPI.
func validatePaymentMode(fl validator.FieldLevel) bool {
	_, ok := domain.ParsePaymentMode(fl.Field().String())
	return ok
}

// validateMoney accepts a positive rupee amount with at most two decimals.
func validateMoney(fl validator.FieldLevel) bool {
	p, err := money.Parse(fl.Field().String())
	return err == nil && p > 0
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
