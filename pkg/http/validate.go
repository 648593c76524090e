package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationError is one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"ticker"`
	Message string                 `json:"message,omitempty" example:"ticker is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,15}$`)

// rule is a string-field check registered under a validate tag.
type rule struct {
	check   func(string) bool
	message string
}

var (
	validate *validator.Validate
	rulesMu  sync.RWMutex
	rules    = map[string]rule{}
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report the wire name, not the Go field name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.Split(f.Tag.Get(tag), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	MustRegisterRule("ticker", func(s string) bool {
		return tickerPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
	}, "must be a listed ticker symbol")
}

// MustRegisterRule adds a string rule usable as `validate:"<tag>"`.
// Empty values pass; combine with required when the field is mandatory.
func MustRegisterRule(tag string, check func(string) bool, message string) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	if _, dup := rules[tag]; dup {
		panic(fmt.Sprintf("validation rule %q registered twice", tag))
	}
	err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		v := fl.Field().String()
		return v == "" || check(v)
	})
	if err != nil {
		panic(fmt.Sprintf("register validation rule %q: %v", tag, err))
	}
	rules[tag] = rule{check: check, message: message}
}

// ReadAndValidateRequest binds the request into req, fills `default` tags
// and validates it. A nil slice means the request is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return bindFailure(err)
	}
	if err := defaults.Set(req); err != nil {
		return bindFailure(err)
	}
	err := validate.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return bindFailure(err)
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}
	return out
}

func bindFailure(err error) []ValidationError {
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_MALFORMED", Message: msg}}
}

func describe(fe validator.FieldError) ValidationError {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(tag), Field: field}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	} else if fe.Kind() == reflect.Slice {
		unit = " items"
	}

	switch tag {
	case "required":
		ve.Message = field + " is required"
	case "min", "gte":
		ve.Message = fmt.Sprintf("%s must be at least %s%s", field, param, unit)
		ve.Params = map[string]interface{}{"min": param}
	case "max", "lte":
		ve.Message = fmt.Sprintf("%s must be at most %s%s", field, param, unit)
		ve.Params = map[string]interface{}{"max": param}
	case "gt", "lt":
		op := "greater"
		if tag == "lt" {
			op = "less"
		}
		ve.Message = fmt.Sprintf("%s must be %s than %s", field, op, param)
		ve.Params = map[string]interface{}{"value": param}
	case "oneof":
		opts := strings.Fields(param)
		ve.Message = fmt.Sprintf("%s must be one of: %s", field, strings.Join(opts, ", "))
		ve.Params = map[string]interface{}{"options": opts}
	default:
		rulesMu.RLock()
		r, ok := rules[tag]
		rulesMu.RUnlock()
		if ok {
			ve.Message = field + " " + r.message
			ve.Params = map[string]interface{}{"value": fe.Value()}
		} else {
			ve.Message = fmt.Sprintf("%s failed %s check", field, tag)
		}
	}
	return ve
}
