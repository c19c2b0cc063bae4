package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleForm struct {
	Code    string `validate:"len=3" msg:"code must have 3 characters"`
	Name    string `validate:"required" msg:"name is required"`
	Confirm string `validate:"eqfield=Name"`
}

func TestValidate_FirstFailingFieldWins(t *testing.T) {
	err := Validate(&sampleForm{Code: "12", Name: ""})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Code", ve.Field)
	assert.Equal(t, "code must have 3 characters", ve.Message)

	err = Validate(sampleForm{Code: "123"})
	ve, ok = AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "name is required", ve.Error())
}

func TestValidate_FallsBackToValidatorMessage(t *testing.T) {
	err := Validate(&sampleForm{Code: "123", Name: "a", Confirm: "b"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Confirm", ve.Field)
	assert.Contains(t, ve.Message, "eqfield")
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, Validate(&sampleForm{Code: "123", Name: "a", Confirm: "a"}))
}

func TestAsValidationError_Wrapped(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &ValidationError{Field: "X", Message: "bad"})
	ve, ok := AsValidationError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "bad", ve.Message)
}
