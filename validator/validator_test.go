package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"greengate/entity"
	"greengate/pkg/apperr"
)

func TestNew(t *testing.T) {
	v := New()

	assert.NotNil(t, v)
	assert.NotNil(t, v.validator)
}

func TestValidateStruct_Success(t *testing.T) {
	v := New()

	req := entity.SendOTPRequest{
		PhoneNumber: "+27821234567",
	}

	err := v.ValidateStruct(&req)
	assert.NoError(t, err)
}

func TestValidateStruct_TypedError(t *testing.T) {
	v := New()

	req := entity.SendOTPRequest{
		PhoneNumber: "invalid-phone",
	}

	err := v.ValidateStruct(&req)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "phone_number")
}

func TestValidateStruct_MissingPhoneNumber(t *testing.T) {
	v := New()

	req := entity.SendOTPRequest{}

	err := v.ValidateStruct(&req)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "phone_number")
}

func TestValidatePhoneNumber_Valid(t *testing.T) {
	v := New()

	validPhones := []string{
		"+27821234567",
		"+27715550000",
		"+1234567890",
		"+449876543210",
		"+8613912345678",
		"+5511987654321",
	}

	for _, phone := range validPhones {
		req := entity.SendOTPRequest{PhoneNumber: phone}
		err := v.ValidateStruct(&req)
		assert.NoError(t, err, "Phone number %s should be valid", phone)
	}
}

func TestValidatePhoneNumber_Invalid(t *testing.T) {
	v := New()

	invalidPhones := []string{
		"0821234567",  // missing +
		"+0821234567", // leading zero after +
		"+27 82 123",  // spaces
		"+278212",     // too short
		"+abcdefghij",
		"",
	}

	for _, phone := range invalidPhones {
		req := entity.SendOTPRequest{PhoneNumber: phone}
		err := v.ValidateStruct(&req)
		assert.Error(t, err, "Phone number %q should be invalid", phone)
	}
}

func TestValidateSAID(t *testing.T) {
	v := New()

	valid := entity.IdentityRequest{IDNumber: "8001015009087", AgeAttested: true}
	assert.NoError(t, v.ValidateStruct(&valid))

	invalid := []string{
		"8001015009088", // bad checksum
		"80010150090",   // too short
		"",
	}

	for _, id := range invalid {
		req := entity.IdentityRequest{IDNumber: id, AgeAttested: true}
		err := v.ValidateStruct(&req)
		assert.Error(t, err, "ID %q should be invalid", id)
		assert.Contains(t, err.Error(), "id_number")
	}
}
