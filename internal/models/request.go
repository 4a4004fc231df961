package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RequestStatus string
type HospitalType string
type WardType string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusAccepted   RequestStatus = "accepted"
	RequestStatusDispatched RequestStatus = "dispatched"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "cancelled"

	HospitalTypePrivate    HospitalType = "private"
	HospitalTypeGovernment HospitalType = "government"

	WardTypeGeneral   WardType = "general"
	WardTypeICU       WardType = "icu"
	WardTypeMaternity WardType = "maternity"
	WardTypeEmergency WardType = "emergency"
)

// SOSRequest is the canonical record of one emergency dispatch ticket.
// All writes after creation go through the store's conditional transition
// primitive; once the status is terminal the document never changes again.
type SOSRequest struct {
	ID                  primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RequestNumber       string              `json:"request_number" bson:"request_number"`
	PatientID           primitive.ObjectID  `json:"patient_id" bson:"patient_id" validate:"required"`
	HospitalType        HospitalType        `json:"hospital_type" bson:"hospital_type" validate:"required"`
	WardType            WardType            `json:"ward_type" bson:"ward_type" validate:"required"`
	PreferredHospitalID *primitive.ObjectID `json:"preferred_hospital_id" bson:"preferred_hospital_id"`
	Notes               string              `json:"notes" bson:"notes"`
	// Emergency contact is denormalized onto the request so the notifier
	// can alert them without a profile lookup.
	EmergencyContactName  string `json:"emergency_contact_name" bson:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone" bson:"emergency_contact_phone"`
	Status              RequestStatus       `json:"status" bson:"status" default:"pending"`
	AssignedHospitalID  *primitive.ObjectID `json:"assigned_hospital_id" bson:"assigned_hospital_id"`
	AssignedAmbulanceID *primitive.ObjectID `json:"assigned_ambulance_id" bson:"assigned_ambulance_id"`
	// Version increments on every committed transition; subscribers use it
	// to order and deduplicate events for the same request.
	Version     int64      `json:"version" bson:"version"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	AcceptedAt  *time.Time `json:"accepted_at" bson:"accepted_at"`
	DispatchedAt *time.Time `json:"dispatched_at" bson:"dispatched_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at" bson:"cancelled_at"`
	CancelledBy string     `json:"cancelled_by" bson:"cancelled_by"`
}

// Terminal reports whether no further transition is defined out of s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// Active statuses hold external resources (a bed, possibly an ambulance).
func (s RequestStatus) Active() bool {
	return s == RequestStatusAccepted || s == RequestStatusDispatched
}

func ValidWardType(w WardType) bool {
	switch w {
	case WardTypeGeneral, WardTypeICU, WardTypeMaternity, WardTypeEmergency:
		return true
	}
	return false
}

func ValidHospitalType(h HospitalType) bool {
	return h == HospitalTypePrivate || h == HospitalTypeGovernment
}

// TransitionMutation describes the side effects that must commit atomically
// with a status swap. The store applies it only when the compare-and-swap
// observes the expected status; a failed swap leaves every field untouched.
type TransitionMutation struct {
	AssignHospitalID  *primitive.ObjectID
	AssignAmbulanceID *primitive.ObjectID
	// BedDelta adjusts the available-bed counter of BedHospitalID for
	// BedWard. A negative delta fails with CapacityExceeded rather than
	// taking the counter below zero.
	BedHospitalID *primitive.ObjectID
	BedWard       WardType
	BedDelta      int
	// AmbulanceAvailable flips the availability flag of AmbulanceID.
	// Marking an already-unavailable ambulance unavailable fails the
	// transition (two requests can never hold the same unit).
	AmbulanceID        *primitive.ObjectID
	AmbulanceAvailable *bool
	CancelledBy        string
}
