package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ranchcore/pkg/domain"
)

// validate is the shared struct validator. Field constraints live in the
// entity struct tags; error messages report JSON field names since payloads
// arrive from devices as JSON.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateEntity runs struct validation and converts failures into the
// domain's ValidationError with a readable field summary.
func validateEntity(entity domain.EntityType, value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ValidationError{Entity: entity, Reason: err.Error()}
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			reasons = append(reasons, fmt.Sprintf("field %s is required", fe.Field()))
		case "oneof":
			reasons = append(reasons, fmt.Sprintf("field %s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			reasons = append(reasons, fmt.Sprintf("field %s fails %s constraint", fe.Field(), fe.Tag()))
		}
	}
	return domain.ValidationError{Entity: entity, Reason: strings.Join(reasons, "; ")}
}
