package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/apperror"
)

var (
	registerOnce sync.Once
	rgbHexRe     = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

	// now подменяется в тестах.
	now = time.Now
)

// RegisterValidators подключает к gin-валидатору имена полей из json-тегов
// и доменные правила future, price и rgbhex.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("future", validateFuture)
		_ = v.RegisterValidation("price", validatePrice)
		_ = v.RegisterValidation("rgbhex", validateRGBHex)
	})
}

func validateFuture(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && t.After(now())
}

// не более двух знаков после запятой
func validatePrice(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	cents := p * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

func validateRGBHex(fl validator.FieldLevel) bool {
	return rgbHexRe.MatchString(fl.Field().String())
}

// bindingError переводит ошибки декодирования и валидации в ValidationError с деталями по полям.
func bindingError(err error) *apperror.Error {
	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
		synErr  *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		details := make([]apperror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, apperror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
		}
		return apperror.Validation("request validation failed", details...)
	case errors.As(err, &typeErr):
		return apperror.Validation("request validation failed", apperror.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type),
		})
	case errors.As(err, &synErr):
		return apperror.Validation("malformed JSON body")
	}
	return apperror.Validation(err.Error())
}

func fieldPath(fe validator.FieldError) string {
	// Namespace: "createReservationRequest.startTime"
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be %s %s characters long", bound, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
		}
		return fmt.Sprintf("must be %s %s", bound, fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "future":
		return "must be in the future"
	case "price":
		return "must have at most two decimal places"
	case "rgbhex":
		return "must be a hex colour like #RRGGBB"
	case "uuid":
		return "must be a valid uuid"
	case "datetime":
		return fmt.Sprintf("must match format %s", fe.Param())
	}
	return fmt.Sprintf("failed on %s", fe.Tag())
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid "+field, apperror.FieldError{Field: field, Message: "must be a valid uuid"})
	}
	return id, nil
}
