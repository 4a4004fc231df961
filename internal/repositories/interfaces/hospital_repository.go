package interfaces

import (
	"context"

	"pulsepath/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HospitalRepository reads hospital reference data. Bed counters are only
// ever written through RequestRepository.ApplyTransition so the counter and
// the request status can never diverge.
type HospitalRepository interface {
	Create(ctx context.Context, hospital *models.Hospital) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error)
	List(ctx context.Context) ([]*models.Hospital, error)
	ListByType(ctx context.Context, hospitalType models.HospitalType) ([]*models.Hospital, error)
}
