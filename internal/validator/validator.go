package validator

import (
	"github.com/go-playground/validator/v10"
)

// Validator is a wrapper around the actual validator
// It carries the configured instance so payload packages share one set
// of compiled rules
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validator: validator.New()}
}

func (v *Validator) Struct(s any) error {
	return v.validator.Struct(s)
}
