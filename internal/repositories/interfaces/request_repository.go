package interfaces

import (
	"context"
	"time"

	"pulsepath/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestRepository is the single write path for SOS requests.
// ApplyTransition is the compare-and-swap primitive every transition goes
// through: it swaps the status and applies the mutation's side effects in
// one atomic step, or fails without any effect.
type RequestRepository interface {
	Create(ctx context.Context, request *models.SOSRequest) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSRequest, error)

	// ApplyTransition commits expected→next plus the mutation atomically.
	// It returns the post-commit snapshot on success. Failure kinds:
	// NotFound (unknown id), StaleState (stored status != expected, or a
	// lost ambulance race), CapacityExceeded (bed decrement would go
	// negative). InvalidTransition is never produced here; the caller
	// decides that from the observed status.
	ApplyTransition(ctx context.Context, id primitive.ObjectID, expected, next models.RequestStatus, mutation *models.TransitionMutation) (*models.SOSRequest, error)

	// ListPending returns pending requests, newest first.
	ListPending(ctx context.Context) ([]*models.SOSRequest, error)
	// ListByPatient returns all of a patient's requests, newest first.
	ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*models.SOSRequest, error)
	// ListByHospital returns requests assigned to a hospital, newest first.
	ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error)
	// ListByAmbulance returns active requests assigned to an ambulance.
	ListByAmbulance(ctx context.Context, ambulanceID primitive.ObjectID) ([]*models.SOSRequest, error)
	// ListStalePending returns pending requests created before cutoff, for
	// the reaper.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.SOSRequest, error)
}
