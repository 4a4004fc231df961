package memory

import (
	"context"
	"sort"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type hospitalRepository struct {
	store *Store
}

// Hospitals returns the hospital view over the shared store.
func (s *Store) Hospitals() interfaces.HospitalRepository {
	return &hospitalRepository{store: s}
}

func (r *hospitalRepository) Create(ctx context.Context, hospital *models.Hospital) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if hospital.ID.IsZero() {
		hospital.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	hospital.CreatedAt = now
	hospital.UpdatedAt = now
	r.store.hospitals[hospital.ID] = cloneHospital(hospital)
	return nil
}

func (r *hospitalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	h, ok := r.store.hospitals[id]
	if !ok {
		return nil, models.NewNotFound(id)
	}
	return cloneHospital(h), nil
}

func (r *hospitalRepository) List(ctx context.Context) ([]*models.Hospital, error) {
	return r.list(func(*models.Hospital) bool { return true })
}

func (r *hospitalRepository) ListByType(ctx context.Context, hospitalType models.HospitalType) ([]*models.Hospital, error) {
	return r.list(func(h *models.Hospital) bool { return h.Type == hospitalType })
}

func (r *hospitalRepository) list(match func(*models.Hospital) bool) ([]*models.Hospital, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*models.Hospital
	for _, h := range r.store.hospitals {
		if match(h) {
			out = append(out, cloneHospital(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
