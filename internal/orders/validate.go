package orders

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Validator checks Input and Order values against the field constraints and
// the configured container catalog.
type Validator struct {
	v       *validatorv10.Validate
	catalog *Catalog
}

func NewValidator(catalog *Catalog) *Validator {
	v := validatorv10.New()

	// report JSON names so messages match what the form submitted
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("container_size", func(fl validatorv10.FieldLevel) bool {
		return catalog.Contains(ContainerSize(fl.Field().String()))
	})

	v.RegisterStructValidation(inputStructValidation, Input{})
	v.RegisterStructValidation(orderStructValidation, Order{})

	return &Validator{v: v, catalog: catalog}
}

func inputStructValidation(sl validatorv10.StructLevel) {
	in := sl.Current().Interface().(Input)
	if in.DeliveryDate.IsZero() {
		sl.ReportError(in.DeliveryDate, "deliveryDate", "DeliveryDate", "required", "")
	}
}

func orderStructValidation(sl validatorv10.StructLevel) {
	o := sl.Current().Interface().(Order)
	if o.DeliveryDate.IsZero() {
		sl.ReportError(o.DeliveryDate, "deliveryDate", "DeliveryDate", "required", "")
	}
	if strings.TrimSpace(o.ID) == "" {
		sl.ReportError(o.ID, "id", "ID", "required", "")
	}
}

func (v *Validator) ValidateInput(in Input) error {
	return v.check(in)
}

func (v *Validator) ValidateOrder(o Order) error {
	return v.check(o)
}

func (v *Validator) check(value interface{}) error {
	err := v.v.Struct(value)
	if err == nil {
		return nil
	}

	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return &ValidationError{Fields: map[string]string{"error": err.Error()}}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "container_size":
		return fmt.Sprintf("unknown container size %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return fe.Error()
}
