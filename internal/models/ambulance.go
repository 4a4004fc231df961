package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Ambulance struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	HospitalID primitive.ObjectID `json:"hospital_id" bson:"hospital_id" validate:"required"`
	CallSign   string             `json:"call_sign" bson:"call_sign"`
	DriverName string             `json:"driver_name" bson:"driver_name"`
	Phone      string             `json:"phone" bson:"phone"`
	// Available flips to false for the lifetime of a dispatched request and
	// back to true when the request completes or is cancelled.
	Available bool      `json:"available" bson:"available" default:"true"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
