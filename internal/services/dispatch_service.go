package services

import (
	"context"
	"errors"
	"sort"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/internal/utils"
	"pulsepath/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DispatchService owns the SOS request lifecycle: it validates transitions
// against the state machine, arbitrates concurrent accepts through the
// store's compare-and-swap, and hands committed events to the fanout.
type DispatchService interface {
	Submit(ctx context.Context, input *SubmitRequestInput) (*models.SOSRequest, error)
	Get(ctx context.Context, requestID primitive.ObjectID) (*models.SOSRequest, error)

	ListEligible(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error)
	ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*models.SOSRequest, error)
	ListAssignedToHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error)
	ListAssignedToAmbulance(ctx context.Context, ambulanceID primitive.ObjectID) ([]*models.SOSRequest, error)

	Accept(ctx context.Context, hospitalID, requestID primitive.ObjectID) (*models.SOSRequest, error)
	Decline(ctx context.Context, hospitalID, requestID primitive.ObjectID) error
	Dispatch(ctx context.Context, hospitalID, requestID, ambulanceID primitive.ObjectID) (*models.SOSRequest, error)
	Complete(ctx context.Context, caller models.Caller, requestID primitive.ObjectID) error
	Cancel(ctx context.Context, caller models.Caller, requestID primitive.ObjectID) error
}

type SubmitRequestInput struct {
	PatientID             primitive.ObjectID  `json:"patient_id"`
	HospitalType          models.HospitalType `json:"hospital_type"`
	WardType              models.WardType     `json:"ward_type"`
	PreferredHospitalID   *primitive.ObjectID `json:"preferred_hospital_id"`
	Notes                 string              `json:"notes"`
	EmergencyContactName  string              `json:"emergency_contact_name"`
	EmergencyContactPhone string              `json:"emergency_contact_phone"`
}

type dispatchService struct {
	requestRepo   interfaces.RequestRepository
	hospitalRepo  interfaces.HospitalRepository
	ambulanceRepo interfaces.AmbulanceRepository
	gateway       *RoleGateway
	// announce publishes events that do not come out of the store's commit
	// hook; today that is only the creation broadcast.
	announce func(*models.RequestEvent)
	log      *logger.Logger
}

func NewDispatchService(
	requestRepo interfaces.RequestRepository,
	hospitalRepo interfaces.HospitalRepository,
	ambulanceRepo interfaces.AmbulanceRepository,
	gateway *RoleGateway,
	announce func(*models.RequestEvent),
	log *logger.Logger,
) DispatchService {
	if announce == nil {
		announce = func(*models.RequestEvent) {}
	}
	return &dispatchService{
		requestRepo:   requestRepo,
		hospitalRepo:  hospitalRepo,
		ambulanceRepo: ambulanceRepo,
		gateway:       gateway,
		announce:      announce,
		log:           log,
	}
}

func (s *dispatchService) Submit(ctx context.Context, input *SubmitRequestInput) (*models.SOSRequest, error) {
	request := &models.SOSRequest{
		RequestNumber:         utils.GenerateRequestNumber(),
		PatientID:             input.PatientID,
		HospitalType:          input.HospitalType,
		WardType:              input.WardType,
		PreferredHospitalID:   input.PreferredHospitalID,
		Notes:                 input.Notes,
		EmergencyContactName:  input.EmergencyContactName,
		EmergencyContactPhone: input.EmergencyContactPhone,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	s.log.WithSOSID(request.ID).WithCallerID(input.PatientID).Info("SOS request submitted")

	// The creation broadcast is what puts the request in front of every
	// eligible hospital. Creation precedes any transition on the same id,
	// so publishing here cannot reorder against commit-hook events.
	s.announce(&models.RequestEvent{
		RequestID: request.ID,
		OldStatus: "",
		NewStatus: models.RequestStatusPending,
		Version:   request.Version,
		Request:   request,
		EmittedAt: request.CreatedAt,
	})

	return request, nil
}

func (s *dispatchService) Get(ctx context.Context, requestID primitive.ObjectID) (*models.SOSRequest, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

// ListEligible returns pending requests this hospital could take: type
// preference matches and the ward is one it serves. The preferred hospital
// is a soft signal, it sorts first but never filters.
func (s *dispatchService) ListEligible(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error) {
	hospital, err := s.hospitalRepo.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	pending, err := s.requestRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []*models.SOSRequest
	for _, req := range pending {
		if req.HospitalType != hospital.Type {
			continue
		}
		if !hospital.Serves(req.WardType) {
			continue
		}
		eligible = append(eligible, req)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		pi := eligible[i].PreferredHospitalID != nil && *eligible[i].PreferredHospitalID == hospitalID
		pj := eligible[j].PreferredHospitalID != nil && *eligible[j].PreferredHospitalID == hospitalID
		if pi != pj {
			return pi
		}
		return eligible[i].CreatedAt.After(eligible[j].CreatedAt)
	})

	return eligible, nil
}

func (s *dispatchService) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.requestRepo.ListByPatient(ctx, patientID)
}

func (s *dispatchService) ListAssignedToHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.requestRepo.ListByHospital(ctx, hospitalID)
}

func (s *dispatchService) ListAssignedToAmbulance(ctx context.Context, ambulanceID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.requestRepo.ListByAmbulance(ctx, ambulanceID)
}

// Accept is the racing transition: any number of hospitals may call it for
// the same pending request, the store serializes them and exactly one swap
// observes pending. Losers get StaleState, never a partial write.
func (s *dispatchService) Accept(ctx context.Context, hospitalID, requestID primitive.ObjectID) (*models.SOSRequest, error) {
	if err := s.gateway.Authorize(requestID, models.RoleHospital, models.EventAccept); err != nil {
		return nil, err
	}

	hospital, err := s.hospitalRepo.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !hospital.Serves(request.WardType) {
		return nil, models.NewCapacityExceeded(requestID, request.WardType)
	}

	mutation := &models.TransitionMutation{
		AssignHospitalID: &hospitalID,
		BedHospitalID:    &hospitalID,
		BedWard:          request.WardType,
		BedDelta:         -1,
	}

	updated, err := s.requestRepo.ApplyTransition(ctx, requestID, models.RequestStatusPending, models.RequestStatusAccepted, mutation)
	if err != nil {
		return nil, s.classify(err, models.EventAccept)
	}

	s.log.LogTransition(requestID, string(models.RequestStatusPending), string(updated.Status), hospitalID, string(models.RoleHospital))
	return updated, nil
}

// Decline is a hospital turning down a pending request before anyone takes
// it; it shares the cancel edge out of pending.
func (s *dispatchService) Decline(ctx context.Context, hospitalID, requestID primitive.ObjectID) error {
	if err := s.gateway.Authorize(requestID, models.RoleHospital, models.EventDecline); err != nil {
		return err
	}

	mutation := &models.TransitionMutation{CancelledBy: string(models.RoleHospital)}
	_, err := s.requestRepo.ApplyTransition(ctx, requestID, models.RequestStatusPending, models.RequestStatusCancelled, mutation)
	if err != nil {
		return s.classify(err, models.EventDecline)
	}

	s.log.LogTransition(requestID, string(models.RequestStatusPending), string(models.RequestStatusCancelled), hospitalID, string(models.RoleHospital))
	return nil
}

func (s *dispatchService) Dispatch(ctx context.Context, hospitalID, requestID, ambulanceID primitive.ObjectID) (*models.SOSRequest, error) {
	if err := s.gateway.Authorize(requestID, models.RoleHospital, models.EventDispatch); err != nil {
		return nil, err
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Only the hospital that won the accept may dispatch.
	if request.AssignedHospitalID != nil && *request.AssignedHospitalID != hospitalID {
		s.log.LogDenied(requestID, hospitalID, string(models.RoleHospital), string(models.EventDispatch))
		return nil, models.NewForbidden(requestID, models.RoleHospital, models.EventDispatch)
	}

	ambulance, err := s.ambulanceRepo.GetByID(ctx, ambulanceID)
	if err != nil {
		return nil, err
	}
	if ambulance.HospitalID != hospitalID {
		s.log.LogDenied(requestID, hospitalID, string(models.RoleHospital), string(models.EventDispatch))
		return nil, models.NewForbidden(requestID, models.RoleHospital, models.EventDispatch)
	}

	unavailable := false
	mutation := &models.TransitionMutation{
		AssignAmbulanceID:  &ambulanceID,
		AmbulanceID:        &ambulanceID,
		AmbulanceAvailable: &unavailable,
	}

	updated, err := s.requestRepo.ApplyTransition(ctx, requestID, models.RequestStatusAccepted, models.RequestStatusDispatched, mutation)
	if err != nil {
		return nil, s.classify(err, models.EventDispatch)
	}

	s.log.LogTransition(requestID, string(models.RequestStatusAccepted), string(updated.Status), hospitalID, string(models.RoleHospital))
	return updated, nil
}

func (s *dispatchService) Complete(ctx context.Context, caller models.Caller, requestID primitive.ObjectID) error {
	if err := s.gateway.Authorize(requestID, caller.Role, models.EventComplete); err != nil {
		s.log.LogDenied(requestID, caller.ID, string(caller.Role), string(models.EventComplete))
		return err
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if err := s.checkOwnership(request, caller, models.EventComplete); err != nil {
		return err
	}

	mutation := &models.TransitionMutation{}
	if request.AssignedAmbulanceID != nil {
		available := true
		mutation.AmbulanceID = request.AssignedAmbulanceID
		mutation.AmbulanceAvailable = &available
	}

	_, err = s.requestRepo.ApplyTransition(ctx, requestID, models.RequestStatusDispatched, models.RequestStatusCompleted, mutation)
	if err != nil {
		return s.classify(err, models.EventComplete)
	}

	s.log.LogTransition(requestID, string(models.RequestStatusDispatched), string(models.RequestStatusCompleted), caller.ID, string(caller.Role))
	return nil
}

// Cancel handles every abort edge. The side effects depend on how far the
// request got: an accepted request releases its bed, a dispatched one also
// frees the ambulance.
func (s *dispatchService) Cancel(ctx context.Context, caller models.Caller, requestID primitive.ObjectID) error {
	if err := s.gateway.Authorize(requestID, caller.Role, models.EventCancel); err != nil {
		s.log.LogDenied(requestID, caller.ID, string(caller.Role), string(models.EventCancel))
		return err
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	rule, ok := ruleFor(models.EventCancel, request.Status)
	if !ok {
		return models.NewInvalidTransition(requestID, request.Status, models.EventCancel)
	}
	if !roleAllowed(rule, caller.Role) {
		s.log.LogDenied(requestID, caller.ID, string(caller.Role), string(models.EventCancel))
		return models.NewForbidden(requestID, caller.Role, models.EventCancel)
	}
	if err := s.checkOwnership(request, caller, models.EventCancel); err != nil {
		return err
	}

	mutation := &models.TransitionMutation{CancelledBy: string(caller.Role)}
	if request.Status.Active() && request.AssignedHospitalID != nil {
		// Release the bed reserved at accept time.
		mutation.BedHospitalID = request.AssignedHospitalID
		mutation.BedWard = request.WardType
		mutation.BedDelta = 1
	}
	if request.Status == models.RequestStatusDispatched && request.AssignedAmbulanceID != nil {
		available := true
		mutation.AmbulanceID = request.AssignedAmbulanceID
		mutation.AmbulanceAvailable = &available
	}

	_, err = s.requestRepo.ApplyTransition(ctx, requestID, request.Status, models.RequestStatusCancelled, mutation)
	if err != nil {
		return s.classify(err, models.EventCancel)
	}

	s.log.LogTransition(requestID, string(request.Status), string(models.RequestStatusCancelled), caller.ID, string(caller.Role))
	return nil
}

// checkOwnership enforces the dynamic half of authorization: patients act
// only on their own requests, hospitals and ambulances only on requests
// assigned to them.
func (s *dispatchService) checkOwnership(request *models.SOSRequest, caller models.Caller, event models.TransitionEvent) error {
	switch caller.Role {
	case models.RolePatient:
		if request.PatientID != caller.ID {
			s.log.LogDenied(request.ID, caller.ID, string(caller.Role), string(event))
			return models.NewForbidden(request.ID, caller.Role, event)
		}
	case models.RoleHospital:
		if request.AssignedHospitalID != nil && *request.AssignedHospitalID != caller.ID {
			s.log.LogDenied(request.ID, caller.ID, string(caller.Role), string(event))
			return models.NewForbidden(request.ID, caller.Role, event)
		}
	case models.RoleAmbulance:
		if request.AssignedAmbulanceID == nil || *request.AssignedAmbulanceID != caller.ID {
			s.log.LogDenied(request.ID, caller.ID, string(caller.Role), string(event))
			return models.NewForbidden(request.ID, caller.Role, event)
		}
	}
	return nil
}

// classify upgrades a StaleState against a terminal status to
// InvalidTransition: terminal requests have no edges left, a race was not
// lost, the caller is holding a dead ticket.
func (s *dispatchService) classify(err error, event models.TransitionEvent) error {
	var de *models.DispatchError
	if !errors.As(err, &de) {
		return err
	}
	if de.Kind == models.ErrKindStaleState && de.Status.Terminal() {
		return models.NewInvalidTransition(de.RequestID, de.Status, event)
	}
	return de
}
