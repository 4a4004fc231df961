package services

import (
	"context"
	"fmt"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/pkg/logger"
	"pulsepath/pkg/push"
	"pulsepath/pkg/sms"
)

// NotifierService turns committed dispatch events into outbound push and
// SMS. It subscribes to the fanout like any other consumer and everything it
// does is best effort: a failed notification is logged and dropped, it never
// feeds back into the request lifecycle.
type NotifierService struct {
	hospitalRepo interfaces.HospitalRepository
	pushProvider push.Provider
	smsProvider  sms.Provider
	smsFrom      string
	sub          *Subscription
	log          *logger.Logger
}

func NewNotifierService(
	hospitalRepo interfaces.HospitalRepository,
	pushProvider push.Provider,
	smsProvider sms.Provider,
	smsFrom string,
	log *logger.Logger,
) *NotifierService {
	return &NotifierService{
		hospitalRepo: hospitalRepo,
		pushProvider: pushProvider,
		smsProvider:  smsProvider,
		smsFrom:      smsFrom,
		log:          log,
	}
}

// Run attaches to the fanout with a match-all filter and processes events
// until ctx is cancelled or the subscription closes.
func (n *NotifierService) Run(ctx context.Context, fanout *FanoutService) {
	n.sub = fanout.Subscribe(models.EventFilter{})
	defer n.sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-n.sub.C:
			if !ok {
				return
			}
			n.handle(ctx, evt)
		}
	}
}

func (n *NotifierService) handle(ctx context.Context, evt *models.RequestEvent) {
	if evt.Request == nil {
		return
	}

	switch evt.NewStatus {
	case models.RequestStatusPending:
		n.announceToHospitals(ctx, evt)
		n.notifyContact(ctx, evt, fmt.Sprintf(
			"An emergency request %s has been submitted for your contact. You will be notified when a hospital responds.",
			evt.Request.RequestNumber,
		))
	case models.RequestStatusAccepted:
		n.notifyPatient(ctx, evt, "Request accepted", "A hospital has accepted your emergency request and reserved a bed.")
		n.notifyContact(ctx, evt, fmt.Sprintf(
			"Emergency request %s has been accepted by %s.",
			evt.Request.RequestNumber, n.hospitalName(ctx, evt),
		))
	case models.RequestStatusDispatched:
		n.notifyPatient(ctx, evt, "Ambulance dispatched", "An ambulance is on its way to you.")
		n.notifyContact(ctx, evt, fmt.Sprintf(
			"An ambulance has been dispatched for emergency request %s.",
			evt.Request.RequestNumber,
		))
	case models.RequestStatusCompleted:
		n.notifyPatient(ctx, evt, "Request completed", "Your emergency request has been completed.")
	case models.RequestStatusCancelled:
		n.notifyPatient(ctx, evt, "Request cancelled", "Your emergency request has been cancelled.")
	}
}

// announceToHospitals pushes a new pending request to the topic every
// hospital of the matching type listens on.
func (n *NotifierService) announceToHospitals(ctx context.Context, evt *models.RequestEvent) {
	if n.pushProvider == nil {
		return
	}

	topic := fmt.Sprintf("hospitals-%s", evt.Request.HospitalType)
	_, err := n.pushProvider.Send(ctx, &push.Notification{
		Topic:    topic,
		Title:    "New emergency request",
		Body:     fmt.Sprintf("Incoming %s request for the %s ward.", evt.Request.HospitalType, evt.Request.WardType),
		Priority: "high",
		Data: map[string]string{
			"request_id": evt.RequestID.Hex(),
			"ward_type":  string(evt.Request.WardType),
		},
	})
	if err != nil {
		n.log.WithSOSID(evt.RequestID).WithError(err).Warn("hospital push failed")
	}
}

func (n *NotifierService) notifyPatient(ctx context.Context, evt *models.RequestEvent, title, body string) {
	if n.pushProvider == nil {
		return
	}

	topic := fmt.Sprintf("patient-%s", evt.Request.PatientID.Hex())
	_, err := n.pushProvider.Send(ctx, &push.Notification{
		Topic:    topic,
		Title:    title,
		Body:     body,
		Priority: "high",
		Data: map[string]string{
			"request_id": evt.RequestID.Hex(),
			"status":     string(evt.NewStatus),
		},
	})
	if err != nil {
		n.log.WithSOSID(evt.RequestID).WithError(err).Warn("patient push failed")
	}
}

func (n *NotifierService) notifyContact(ctx context.Context, evt *models.RequestEvent, body string) {
	if n.smsProvider == nil || evt.Request.EmergencyContactPhone == "" {
		return
	}

	_, err := n.smsProvider.SendSMS(ctx, &sms.Message{
		To:   evt.Request.EmergencyContactPhone,
		From: n.smsFrom,
		Body: body,
	})
	if err != nil {
		n.log.WithSOSID(evt.RequestID).WithError(err).Warn("emergency contact SMS failed")
	}
}

func (n *NotifierService) hospitalName(ctx context.Context, evt *models.RequestEvent) string {
	if evt.Request.AssignedHospitalID == nil {
		return "a hospital"
	}
	hospital, err := n.hospitalRepo.GetByID(ctx, *evt.Request.AssignedHospitalID)
	if err != nil {
		return "a hospital"
	}
	return hospital.Name
}
