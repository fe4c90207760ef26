package storefront

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"lessonshop/internal/domain"
)

// OrderForm holds the customer fields typed into the checkout view.
type OrderForm struct {
	FirstName string `json:"firstName" validate:"personname"`
	LastName  string `json:"lastName" validate:"personname"`
	Address   string `json:"address" validate:"nonblank"`
	City      string `json:"city" validate:"nonblank"`
	Method    string `json:"method" validate:"oneof=delivery pickup"`
	Phone     string `json:"phone" validate:"phone"`
	Gift      bool   `json:"gift"`
}

// DefaultOrderForm is the empty form a session starts with and resets to.
func DefaultOrderForm() OrderForm {
	return OrderForm{}
}

// ValidationPolicy pins the name and phone rules. Deployments disagree on
// both, so the choice is configuration rather than code.
type ValidationPolicy struct {
	Name         string
	NamePattern  *regexp.Regexp
	PhonePattern *regexp.Regexp
}

var (
	// StrictPolicy: letters only in names, 8 to 15 phone digits.
	StrictPolicy = ValidationPolicy{
		Name:         "strict",
		NamePattern:  regexp.MustCompile(`^[A-Za-z]+$`),
		PhonePattern: regexp.MustCompile(`^[0-9]{8,15}$`),
	}
	// LenientPolicy: single interior spaces allowed in names, any number of phone digits.
	LenientPolicy = ValidationPolicy{
		Name:         "lenient",
		NamePattern:  regexp.MustCompile(`^[A-Za-z]+( [A-Za-z]+)*$`),
		PhonePattern: regexp.MustCompile(`^[0-9]+$`),
	}
)

// PolicyByName resolves a configured policy name. Empty selects StrictPolicy.
func PolicyByName(name string) (ValidationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrictPolicy.Name:
		return StrictPolicy, nil
	case LenientPolicy.Name:
		return LenientPolicy, nil
	}
	return ValidationPolicy{}, fmt.Errorf("unknown validation policy %q", name)
}

// FormValidator evaluates the submission gate under one policy.
type FormValidator struct {
	policy   ValidationPolicy
	validate *validator.Validate
}

func NewFormValidator(policy ValidationPolicy) *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return policy.NamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return policy.PhonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &FormValidator{policy: policy, validate: v}
}

func (fv *FormValidator) Policy() ValidationPolicy { return fv.policy }

// Validate checks the whole gate and names every failing field. It is
// recomputed on every call.
func (fv *FormValidator) Validate(cartLen int, form OrderForm) error {
	var fields []FieldError
	if cartLen == 0 {
		fields = append(fields, FieldError{Field: "cart", Reason: "cart is empty"})
	}
	if err := fv.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Reason: fv.reason(fe.Tag())})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// IsSubmittable is the boolean form of Validate.
func (fv *FormValidator) IsSubmittable(cart *CartLedger, form OrderForm) bool {
	return fv.Validate(cart.Len(), form) == nil
}

func (fv *FormValidator) reason(tag string) string {
	switch tag {
	case "personname":
		if fv.policy.Name == LenientPolicy.Name {
			return "letters and single spaces only"
		}
		return "letters only"
	case "phone":
		if fv.policy.Name == LenientPolicy.Name {
			return "digits only"
		}
		return "8 to 15 digits"
	case "nonblank":
		return "required"
	case "oneof":
		return fmt.Sprintf("choose %s or %s", domain.MethodDelivery, domain.MethodPickup)
	}
	return "invalid"
}
