package memory

import (
	"context"
	"sort"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ambulanceRepository struct {
	store *Store
}

// Ambulances returns the fleet view over the shared store.
func (s *Store) Ambulances() interfaces.AmbulanceRepository {
	return &ambulanceRepository{store: s}
}

func (r *ambulanceRepository) Create(ctx context.Context, ambulance *models.Ambulance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if ambulance.ID.IsZero() {
		ambulance.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	ambulance.CreatedAt = now
	ambulance.UpdatedAt = now
	r.store.ambulances[ambulance.ID] = cloneAmbulance(ambulance)
	return nil
}

func (r *ambulanceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ambulance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.ambulances[id]
	if !ok {
		return nil, models.NewNotFound(id)
	}
	return cloneAmbulance(a), nil
}

func (r *ambulanceRepository) ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return r.list(func(a *models.Ambulance) bool { return a.HospitalID == hospitalID })
}

func (r *ambulanceRepository) ListAvailableByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return r.list(func(a *models.Ambulance) bool { return a.HospitalID == hospitalID && a.Available })
}

func (r *ambulanceRepository) list(match func(*models.Ambulance) bool) ([]*models.Ambulance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*models.Ambulance
	for _, a := range r.store.ambulances {
		if match(a) {
			out = append(out, cloneAmbulance(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallSign < out[j].CallSign })
	return out, nil
}
