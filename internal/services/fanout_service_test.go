package services

import (
	"testing"
	"time"

	"pulsepath/internal/models"
	"pulsepath/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func pendingEvent(patientID primitive.ObjectID, hospitalType models.HospitalType, ward models.WardType) *models.RequestEvent {
	req := &models.SOSRequest{
		ID:           primitive.NewObjectID(),
		PatientID:    patientID,
		HospitalType: hospitalType,
		WardType:     ward,
		Status:       models.RequestStatusPending,
	}
	return &models.RequestEvent{
		RequestID: req.ID,
		NewStatus: models.RequestStatusPending,
		Version:   1,
		Request:   req,
		EmittedAt: time.Now().UTC(),
	}
}

func drain(t *testing.T, c <-chan *models.RequestEvent) *models.RequestEvent {
	t.Helper()
	select {
	case evt := <-c:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesMatchAllSubscriber(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 4)
	sub := fanout.Subscribe(models.EventFilter{})
	defer sub.Close()

	evt := pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU)
	fanout.Publish(evt)

	got := drain(t, sub.C)
	assert.Equal(t, evt.RequestID, got.RequestID)
}

func TestPublishRespectsPatientFilter(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 4)

	mine := primitive.NewObjectID()
	sub := fanout.Subscribe(models.EventFilter{PatientID: &mine})
	defer sub.Close()

	fanout.Publish(pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU))
	fanout.Publish(pendingEvent(mine, models.HospitalTypePrivate, models.WardTypeICU))

	got := drain(t, sub.C)
	assert.Equal(t, mine, got.Request.PatientID)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected event for patient %s", extra.Request.PatientID.Hex())
	default:
	}
}

func TestPublishRespectsHospitalWardFilter(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 4)

	hospitalID := primitive.NewObjectID()
	sub := fanout.Subscribe(models.EventFilter{
		HospitalID:   &hospitalID,
		HospitalType: models.HospitalTypeGovernment,
		ServedWards:  []models.WardType{models.WardTypeEmergency},
	})
	defer sub.Close()

	fanout.Publish(pendingEvent(primitive.NewObjectID(), models.HospitalTypeGovernment, models.WardTypeICU))
	fanout.Publish(pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeEmergency))
	want := pendingEvent(primitive.NewObjectID(), models.HospitalTypeGovernment, models.WardTypeEmergency)
	fanout.Publish(want)

	got := drain(t, sub.C)
	assert.Equal(t, want.RequestID, got.RequestID)
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 16)
	sub := fanout.Subscribe(models.EventFilter{})
	defer sub.Close()

	base := pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU)
	statuses := []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusAccepted,
		models.RequestStatusDispatched,
		models.RequestStatusCompleted,
	}
	for i, status := range statuses {
		evt := *base
		evt.NewStatus = status
		evt.Version = int64(i + 1)
		fanout.Publish(&evt)
	}

	for i, status := range statuses {
		got := drain(t, sub.C)
		assert.Equal(t, status, got.NewStatus)
		assert.EqualValues(t, i+1, got.Version)
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 2)
	sub := fanout.Subscribe(models.EventFilter{})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		fanout.Publish(pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU))
	}

	// Buffer holds two; the rest were dropped instead of blocking Publish.
	assert.Len(t, sub.C, 2)
}

func TestCloseDetachesAndIsIdempotent(t *testing.T) {
	fanout := NewFanoutService(logger.NewNopLogger(), 4)
	sub := fanout.Subscribe(models.EventFilter{})
	require.Equal(t, 1, fanout.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, fanout.SubscriberCount())

	// Publishing after close must not panic or resurrect the channel.
	fanout.Publish(pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU))

	_, open := <-sub.C
	assert.False(t, open)
}

func TestFilterMatchesAssignedHospital(t *testing.T) {
	hospitalID := primitive.NewObjectID()
	other := primitive.NewObjectID()

	evt := pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU)
	evt.NewStatus = models.RequestStatusAccepted
	evt.Request.Status = models.RequestStatusAccepted
	evt.Request.AssignedHospitalID = &hospitalID

	ours := models.EventFilter{HospitalID: &hospitalID}
	theirs := models.EventFilter{HospitalID: &other}

	assert.True(t, ours.Matches(evt))
	assert.False(t, theirs.Matches(evt))
}

func TestFilterStatusesNarrow(t *testing.T) {
	evt := pendingEvent(primitive.NewObjectID(), models.HospitalTypePrivate, models.WardTypeICU)

	accepted := models.EventFilter{Statuses: []models.RequestStatus{models.RequestStatusAccepted}}
	pending := models.EventFilter{Statuses: []models.RequestStatus{models.RequestStatusPending}}

	assert.False(t, accepted.Matches(evt))
	assert.True(t, pending.Matches(evt))
}
