package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulsepath/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store keeps requests, hospitals and ambulances behind a single mutex, so a
// transition and its counter side effects are one atomic step. It backs the
// test suite and local runs; the Mongo repositories provide the same
// contract with session transactions.
type Store struct {
	mu         sync.Mutex
	requests   map[primitive.ObjectID]*models.SOSRequest
	hospitals  map[primitive.ObjectID]*models.Hospital
	ambulances map[primitive.ObjectID]*models.Ambulance

	// onCommit runs while the store lock is held, so hooks observe commits
	// in serialization order. Hooks must not block.
	onCommit func(*models.RequestEvent)
}

func NewStore() *Store {
	return &Store{
		requests:   make(map[primitive.ObjectID]*models.SOSRequest),
		hospitals:  make(map[primitive.ObjectID]*models.Hospital),
		ambulances: make(map[primitive.ObjectID]*models.Ambulance),
	}
}

// OnCommit registers a hook invoked after every committed transition, in
// commit order. Used to feed the notification fanout.
func (s *Store) OnCommit(fn func(*models.RequestEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

func cloneRequest(r *models.SOSRequest) *models.SOSRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneHospital(h *models.Hospital) *models.Hospital {
	if h == nil {
		return nil
	}
	c := *h
	c.Capacity = make(map[models.WardType]models.BedCount, len(h.Capacity))
	for k, v := range h.Capacity {
		c.Capacity[k] = v
	}
	return &c
}

func cloneAmbulance(a *models.Ambulance) *models.Ambulance {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// --- RequestRepository ---

func (s *Store) Create(ctx context.Context, request *models.SOSRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.Status = models.RequestStatusPending
	request.Version = 1
	s.requests[request.ID] = cloneRequest(request)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, models.NewNotFound(id)
	}
	return cloneRequest(req), nil
}

func (s *Store) ApplyTransition(ctx context.Context, id primitive.ObjectID, expected, next models.RequestStatus, mutation *models.TransitionMutation) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, models.NewNotFound(id)
	}
	if req.Status != expected {
		return nil, models.NewStaleState(id, req.Status)
	}

	if mutation == nil {
		mutation = &models.TransitionMutation{}
	}

	// Validate side effects before touching anything, so a failed swap
	// leaves no partial state behind.
	var hospital *models.Hospital
	if mutation.BedHospitalID != nil && mutation.BedDelta != 0 {
		hospital, ok = s.hospitals[*mutation.BedHospitalID]
		if !ok {
			return nil, models.NewNotFound(*mutation.BedHospitalID)
		}
		count, served := hospital.Capacity[mutation.BedWard]
		if !served || (mutation.BedDelta < 0 && count.Available+mutation.BedDelta < 0) {
			return nil, models.NewCapacityExceeded(id, mutation.BedWard)
		}
	}

	var ambulance *models.Ambulance
	if mutation.AmbulanceID != nil && mutation.AmbulanceAvailable != nil {
		ambulance, ok = s.ambulances[*mutation.AmbulanceID]
		if !ok {
			return nil, models.NewNotFound(*mutation.AmbulanceID)
		}
		if !*mutation.AmbulanceAvailable && !ambulance.Available {
			// Lost the race for this unit.
			return nil, models.NewStaleState(id, req.Status)
		}
	}

	now := time.Now().UTC()
	old := req.Status
	req.Status = next
	req.Version++
	req.UpdatedAt = now

	switch next {
	case models.RequestStatusAccepted:
		req.AcceptedAt = &now
	case models.RequestStatusDispatched:
		req.DispatchedAt = &now
	case models.RequestStatusCompleted:
		req.CompletedAt = &now
	case models.RequestStatusCancelled:
		req.CancelledAt = &now
		req.CancelledBy = mutation.CancelledBy
	}

	if mutation.AssignHospitalID != nil {
		req.AssignedHospitalID = mutation.AssignHospitalID
	}
	if mutation.AssignAmbulanceID != nil {
		req.AssignedAmbulanceID = mutation.AssignAmbulanceID
	}

	if hospital != nil {
		count := hospital.Capacity[mutation.BedWard]
		count.Available += mutation.BedDelta
		if count.Available > count.Total {
			count.Available = count.Total
		}
		hospital.Capacity[mutation.BedWard] = count
		hospital.UpdatedAt = now
	}

	if ambulance != nil {
		ambulance.Available = *mutation.AmbulanceAvailable
		ambulance.UpdatedAt = now
	}

	snapshot := cloneRequest(req)
	if s.onCommit != nil {
		s.onCommit(&models.RequestEvent{
			RequestID: snapshot.ID,
			OldStatus: old,
			NewStatus: snapshot.Status,
			Version:   snapshot.Version,
			Request:   snapshot,
			EmittedAt: now,
		})
	}
	return cloneRequest(snapshot), nil
}

func (s *Store) ListPending(ctx context.Context) ([]*models.SOSRequest, error) {
	return s.listRequests(func(r *models.SOSRequest) bool {
		return r.Status == models.RequestStatusPending
	})
}

func (s *Store) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.listRequests(func(r *models.SOSRequest) bool {
		return r.PatientID == patientID
	})
}

func (s *Store) ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.listRequests(func(r *models.SOSRequest) bool {
		return r.AssignedHospitalID != nil && *r.AssignedHospitalID == hospitalID
	})
}

func (s *Store) ListByAmbulance(ctx context.Context, ambulanceID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return s.listRequests(func(r *models.SOSRequest) bool {
		return r.AssignedAmbulanceID != nil && *r.AssignedAmbulanceID == ambulanceID && r.Status.Active()
	})
}

func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.SOSRequest, error) {
	return s.listRequests(func(r *models.SOSRequest) bool {
		return r.Status == models.RequestStatusPending && r.CreatedAt.Before(cutoff)
	})
}

func (s *Store) listRequests(match func(*models.SOSRequest) bool) ([]*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.SOSRequest
	for _, r := range s.requests {
		if match(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
