package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BedCount tracks capacity for a single ward type. Available is mutated only
// through the request store, atomically with the transition that reserves or
// releases the bed.
type BedCount struct {
	Total     int `json:"total" bson:"total"`
	Available int `json:"available" bson:"available"`
}

type Hospital struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name     string             `json:"name" bson:"name" validate:"required"`
	Type     HospitalType       `json:"type" bson:"type" validate:"required"`
	Address  string             `json:"address" bson:"address"`
	Phone    string             `json:"phone" bson:"phone"`
	// Capacity keys are the ward types this hospital serves. A request for
	// a ward type absent from the map is never routed here.
	Capacity       map[WardType]BedCount `json:"capacity" bson:"capacity"`
	DoctorCount    int                   `json:"doctor_count" bson:"doctor_count"`
	AmbulanceCount int                   `json:"ambulance_count" bson:"ambulance_count"`
	CreatedAt      time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" bson:"updated_at"`
}

// Serves reports whether the hospital has any beds provisioned for ward.
func (h *Hospital) Serves(ward WardType) bool {
	_, ok := h.Capacity[ward]
	return ok
}

// AvailableBeds returns the free-bed counter for ward, zero if unserved.
func (h *Hospital) AvailableBeds(ward WardType) int {
	return h.Capacity[ward].Available
}
