package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleHospital  Role = "hospital"
	RoleAmbulance Role = "ambulance"
	// RoleSystem is the reaper and other internal callers. It may only
	// cancel; it never accepts, dispatches or completes.
	RoleSystem Role = "system"
)

// TransitionEvent names one edge of the request state machine.
type TransitionEvent string

const (
	EventAccept   TransitionEvent = "accept"
	EventDecline  TransitionEvent = "decline"
	EventDispatch TransitionEvent = "dispatch"
	EventComplete TransitionEvent = "complete"
	EventCancel   TransitionEvent = "cancel"
)

// RequestEvent is published to subscribers after every committed transition.
// Delivery is best-effort and at-least-once; a subscriber that misses events
// re-fetches current state instead of relying on replay.
type RequestEvent struct {
	RequestID primitive.ObjectID `json:"request_id"`
	OldStatus RequestStatus      `json:"old_status"`
	NewStatus RequestStatus      `json:"new_status"`
	Version   int64              `json:"version"`
	Request   *SOSRequest        `json:"request"`
	EmittedAt time.Time          `json:"emitted_at"`
}

// Caller is the identity and role handed to the coordinator by the auth
// layer. The coordinator treats it as an established fact.
type Caller struct {
	ID   primitive.ObjectID
	Role Role
}

// EventFilter is a subscription predicate. Zero-value fields match anything,
// so a filter narrows rather than enumerates.
type EventFilter struct {
	// Statuses restricts to events whose new status is in the set.
	Statuses []RequestStatus
	// PatientID matches events for that patient's requests.
	PatientID *primitive.ObjectID
	// HospitalID matches pending requests the hospital could serve plus
	// any request already assigned to it.
	HospitalID *primitive.ObjectID
	// HospitalType and ServedWards narrow the pending broadcast for a
	// hospital subscriber to requests it could actually take.
	HospitalType HospitalType
	ServedWards  []WardType
	// AmbulanceID matches events for requests assigned to that unit.
	AmbulanceID *primitive.ObjectID
}

// Matches applies the predicate to a committed event.
func (f *EventFilter) Matches(evt *RequestEvent) bool {
	if evt == nil || evt.Request == nil {
		return false
	}
	req := evt.Request

	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == evt.NewStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.PatientID != nil && req.PatientID != *f.PatientID {
		return false
	}

	if f.AmbulanceID != nil {
		if req.AssignedAmbulanceID == nil || *req.AssignedAmbulanceID != *f.AmbulanceID {
			return false
		}
	}

	if f.HospitalID != nil {
		if req.AssignedHospitalID != nil {
			return *req.AssignedHospitalID == *f.HospitalID
		}
		// Unassigned: only the pending broadcast is interesting, and only
		// when the request fits what this hospital serves.
		if evt.NewStatus != RequestStatusPending && evt.NewStatus != RequestStatusCancelled {
			return false
		}
		if f.HospitalType != "" && req.HospitalType != f.HospitalType {
			return false
		}
		if len(f.ServedWards) > 0 {
			served := false
			for _, w := range f.ServedWards {
				if w == req.WardType {
					served = true
					break
				}
			}
			if !served {
				return false
			}
		}
	}

	return true
}
