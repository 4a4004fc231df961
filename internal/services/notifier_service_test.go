package services

import (
	"context"
	"testing"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/internal/repositories/memory"
	"pulsepath/pkg/logger"
	"pulsepath/pkg/push"
	"pulsepath/pkg/sms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubPushProvider struct {
	sent []*push.Notification
}

func (s *stubPushProvider) Send(ctx context.Context, n *push.Notification) (string, error) {
	s.sent = append(s.sent, n)
	return "msg-1", nil
}

func (s *stubPushProvider) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	return nil
}

func (s *stubPushProvider) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) error {
	return nil
}

type stubSMSProvider struct {
	sent []*sms.Message
}

func (s *stubSMSProvider) SendSMS(ctx context.Context, m *sms.Message) (*sms.Receipt, error) {
	s.sent = append(s.sent, m)
	return &sms.Receipt{MessageID: "sms-1", Status: "sent"}, nil
}

func memoryHospitalRepo(t *testing.T) interfaces.HospitalRepository {
	t.Helper()
	return memory.NewStore().Hospitals()
}

func notifierEvent(status models.RequestStatus, contactPhone string) *models.RequestEvent {
	req := &models.SOSRequest{
		ID:                    primitive.NewObjectID(),
		RequestNumber:         "SOS-AB12CD34",
		PatientID:             primitive.NewObjectID(),
		HospitalType:          models.HospitalTypePrivate,
		WardType:              models.WardTypeICU,
		Status:                status,
		EmergencyContactPhone: contactPhone,
	}
	return &models.RequestEvent{
		RequestID: req.ID,
		NewStatus: status,
		Version:   1,
		Request:   req,
		EmittedAt: time.Now().UTC(),
	}
}

func TestNotifierAnnouncesPendingToHospitals(t *testing.T) {
	pushStub := &stubPushProvider{}
	smsStub := &stubSMSProvider{}
	store := memoryHospitalRepo(t)

	notifier := NewNotifierService(store, pushStub, smsStub, "PulsePath", logger.NewNopLogger())
	notifier.handle(context.Background(), notifierEvent(models.RequestStatusPending, "+14155552671"))

	require.Len(t, pushStub.sent, 1)
	assert.Equal(t, "hospitals-private", pushStub.sent[0].Topic)
	assert.Equal(t, "high", pushStub.sent[0].Priority)
	assert.Equal(t, "icu", pushStub.sent[0].Data["ward_type"])

	require.Len(t, smsStub.sent, 1)
	assert.Equal(t, "+14155552671", smsStub.sent[0].To)
	assert.Equal(t, "PulsePath", smsStub.sent[0].From)
	assert.Contains(t, smsStub.sent[0].Body, "SOS-AB12CD34")
}

func TestNotifierTargetsPatientOnProgress(t *testing.T) {
	pushStub := &stubPushProvider{}
	notifier := NewNotifierService(memoryHospitalRepo(t), pushStub, nil, "", logger.NewNopLogger())

	evt := notifierEvent(models.RequestStatusDispatched, "")
	notifier.handle(context.Background(), evt)

	require.Len(t, pushStub.sent, 1)
	assert.Equal(t, "patient-"+evt.Request.PatientID.Hex(), pushStub.sent[0].Topic)
	assert.Equal(t, "dispatched", pushStub.sent[0].Data["status"])
}

func TestNotifierSkipsContactWithoutPhone(t *testing.T) {
	smsStub := &stubSMSProvider{}
	notifier := NewNotifierService(memoryHospitalRepo(t), nil, smsStub, "PulsePath", logger.NewNopLogger())

	notifier.handle(context.Background(), notifierEvent(models.RequestStatusPending, ""))
	assert.Empty(t, smsStub.sent)
}

func TestNotifierNilProvidersNoPanic(t *testing.T) {
	notifier := NewNotifierService(memoryHospitalRepo(t), nil, nil, "", logger.NewNopLogger())

	for _, status := range []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusAccepted,
		models.RequestStatusDispatched,
		models.RequestStatusCompleted,
		models.RequestStatusCancelled,
	} {
		notifier.handle(context.Background(), notifierEvent(status, "+14155552671"))
	}
}
