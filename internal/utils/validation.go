package utils

import (
	"pulsepath/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("phone", validatePhone)
	validate.RegisterValidation("ward_type", validateWardType)
	validate.RegisterValidation("hospital_type", validateHospitalType)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validatePhone(fl validator.FieldLevel) bool {
	return IsValidPhone(fl.Field().String())
}

func validateWardType(fl validator.FieldLevel) bool {
	return models.ValidWardType(models.WardType(fl.Field().String()))
}

func validateHospitalType(fl validator.FieldLevel) bool {
	return models.ValidHospitalType(models.HospitalType(fl.Field().String()))
}

// ValidationErrors flattens validator output into a field:message map for
// API error details.
func ValidationErrors(err error) map[string]string {
	details := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return details
}
