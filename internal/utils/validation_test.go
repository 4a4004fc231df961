package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPhone(t *testing.T) {
	valid := []string{"+14155552671", "14155552671", "+44 20 7946 0958", "(415) 555-2671"}
	for _, phone := range valid {
		assert.True(t, IsValidPhone(phone), phone)
	}

	invalid := []string{"", "abc", "+0123", "0"}
	for _, phone := range invalid {
		assert.False(t, IsValidPhone(phone), phone)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+14155552671", NormalizePhone("(415) 555-2671"))
	assert.Equal(t, "+14155552671", NormalizePhone("+1 415 555 2671"))
	assert.Equal(t, "+14155552671", NormalizePhone("14155552671"))
}

func TestGenerateRequestNumber(t *testing.T) {
	number := GenerateRequestNumber()

	require.True(t, strings.HasPrefix(number, "SOS-"))
	suffix := strings.TrimPrefix(number, "SOS-")
	assert.Len(t, suffix, RequestNumberLength)
	assert.Equal(t, strings.ToUpper(suffix), suffix)

	// Two consecutive numbers must not collide.
	assert.NotEqual(t, number, GenerateRequestNumber())
}

func TestValidateStructCustomTags(t *testing.T) {
	type form struct {
		HospitalType string `validate:"required,hospital_type"`
		WardType     string `validate:"required,ward_type"`
		Phone        string `validate:"omitempty,phone"`
	}

	require.NoError(t, ValidateStruct(&form{HospitalType: "private", WardType: "icu"}))
	require.NoError(t, ValidateStruct(&form{HospitalType: "government", WardType: "maternity", Phone: "+14155552671"}))

	err := ValidateStruct(&form{HospitalType: "clinic", WardType: "icu"})
	require.Error(t, err)
	details := ValidationErrors(err)
	assert.Contains(t, details, "HospitalType")

	err = ValidateStruct(&form{HospitalType: "private", WardType: "ward9"})
	require.Error(t, err)
	assert.Contains(t, ValidationErrors(err), "WardType")

	err = ValidateStruct(&form{HospitalType: "private", WardType: "icu", Phone: "nope"})
	require.Error(t, err)
	assert.Contains(t, ValidationErrors(err), "Phone")
}
