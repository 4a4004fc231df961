package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	id := primitive.NewObjectID()
	base := NewStaleState(id, RequestStatusAccepted)
	wrapped := fmt.Errorf("applying transition: %w", base)

	assert.Equal(t, ErrKindStaleState, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, ErrKindStaleState))

	var de *DispatchError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, id, de.RequestID)
	assert.Equal(t, RequestStatusAccepted, de.Status)
}

func TestKindOfUnknownErrorIsUnavailable(t *testing.T) {
	assert.Equal(t, ErrKindUnavailable, KindOf(errors.New("connection reset")))
	assert.False(t, IsKind(nil, ErrKindUnavailable))
}

func TestUnavailableUnwrapsCause(t *testing.T) {
	cause := errors.New("no reachable servers")
	err := NewUnavailable(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrKindUnavailable, KindOf(err))
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, RequestStatusAccepted.Active())
	assert.True(t, RequestStatusDispatched.Active())
	assert.False(t, RequestStatusPending.Active())
	assert.False(t, RequestStatusCompleted.Active())

	assert.True(t, RequestStatusCompleted.Terminal())
	assert.True(t, RequestStatusCancelled.Terminal())
	assert.False(t, RequestStatusPending.Terminal())
	assert.False(t, RequestStatusDispatched.Terminal())
}

func TestValidTypeEnums(t *testing.T) {
	assert.True(t, ValidHospitalType(HospitalTypePrivate))
	assert.True(t, ValidHospitalType(HospitalTypeGovernment))
	assert.False(t, ValidHospitalType("clinic"))

	for _, ward := range []WardType{WardTypeGeneral, WardTypeICU, WardTypeMaternity, WardTypeEmergency} {
		assert.True(t, ValidWardType(ward))
	}
	assert.False(t, ValidWardType("ward9"))
}
