package interfaces

import (
	"context"

	"pulsepath/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AmbulanceRepository reads fleet reference data. The availability flag is
// only written through RequestRepository.ApplyTransition.
type AmbulanceRepository interface {
	Create(ctx context.Context, ambulance *models.Ambulance) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ambulance, error)
	ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error)
	ListAvailableByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error)
}
