package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatgogo/client/internal/models"
)

func TestValidationErrorMessage(t *testing.T) {
	err := &models.ValidationError{Fields: models.FieldErrors{
		"password": {"Too short.", "Too common."},
		"email":    {"Enter a valid email address."},
	}}

	// Field names are sorted so the message is deterministic.
	assert.Equal(t,
		"validation failed: email: Enter a valid email address., password: Too short.; Too common.",
		err.Error())

	empty := &models.ValidationError{}
	assert.Equal(t, "validation failed", empty.Error())
}

func TestAsValidation(t *testing.T) {
	verr := &models.ValidationError{Fields: models.FieldErrors{
		"text": {"This field is required."},
	}}

	fields, ok := models.AsValidation(fmt.Errorf("create message: %w", verr))
	assert.True(t, ok)
	assert.Equal(t, []string{"This field is required."}, fields["text"])

	_, ok = models.AsValidation(errors.New("plain failure"))
	assert.False(t, ok)
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &models.TransportError{Op: "fetch room", Err: cause}

	assert.Equal(t, "fetch room: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}
