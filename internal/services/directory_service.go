package services

import (
	"context"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DirectoryService is the read side of the registry: patients browse
// hospitals, hospitals manage their fleet, dashboards read capacity
// snapshots. Bed counters are only ever written through transitions, so
// everything here is a plain read or an initial registration.
type DirectoryService interface {
	RegisterHospital(ctx context.Context, hospital *models.Hospital) error
	GetHospital(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error)
	ListHospitals(ctx context.Context) ([]*models.Hospital, error)
	ListHospitalsByType(ctx context.Context, hospitalType models.HospitalType) ([]*models.Hospital, error)
	CapacitySnapshot(ctx context.Context, hospitalID primitive.ObjectID) (*CapacitySnapshot, error)

	RegisterAmbulance(ctx context.Context, ambulance *models.Ambulance) error
	ListFleet(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error)
	ListAvailableFleet(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error)
}

// CapacitySnapshot is the dashboard card view of one hospital: per-ward bed
// counts plus fleet availability at read time.
type CapacitySnapshot struct {
	HospitalID primitive.ObjectID                  `json:"hospital_id"`
	Name       string                              `json:"name"`
	Type       models.HospitalType                 `json:"type"`
	Wards      map[models.WardType]models.BedCount `json:"wards"`
	Ambulances FleetCount                          `json:"ambulances"`
}

type FleetCount struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

type directoryService struct {
	hospitalRepo  interfaces.HospitalRepository
	ambulanceRepo interfaces.AmbulanceRepository
	log           *logger.Logger
}

func NewDirectoryService(
	hospitalRepo interfaces.HospitalRepository,
	ambulanceRepo interfaces.AmbulanceRepository,
	log *logger.Logger,
) DirectoryService {
	return &directoryService{
		hospitalRepo:  hospitalRepo,
		ambulanceRepo: ambulanceRepo,
		log:           log,
	}
}

func (s *directoryService) RegisterHospital(ctx context.Context, hospital *models.Hospital) error {
	if err := s.hospitalRepo.Create(ctx, hospital); err != nil {
		return err
	}
	s.log.WithField("hospital_id", hospital.ID.Hex()).Info("hospital registered")
	return nil
}

func (s *directoryService) GetHospital(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	return s.hospitalRepo.GetByID(ctx, id)
}

func (s *directoryService) ListHospitals(ctx context.Context) ([]*models.Hospital, error) {
	return s.hospitalRepo.List(ctx)
}

func (s *directoryService) ListHospitalsByType(ctx context.Context, hospitalType models.HospitalType) ([]*models.Hospital, error) {
	return s.hospitalRepo.ListByType(ctx, hospitalType)
}

func (s *directoryService) CapacitySnapshot(ctx context.Context, hospitalID primitive.ObjectID) (*CapacitySnapshot, error) {
	hospital, err := s.hospitalRepo.GetByID(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	fleet, err := s.ambulanceRepo.ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	count := FleetCount{Total: len(fleet)}
	for _, amb := range fleet {
		if amb.Available {
			count.Available++
		}
	}

	return &CapacitySnapshot{
		HospitalID: hospital.ID,
		Name:       hospital.Name,
		Type:       hospital.Type,
		Wards:      hospital.Capacity,
		Ambulances: count,
	}, nil
}

func (s *directoryService) RegisterAmbulance(ctx context.Context, ambulance *models.Ambulance) error {
	// The home hospital must exist before a vehicle can join its fleet.
	if _, err := s.hospitalRepo.GetByID(ctx, ambulance.HospitalID); err != nil {
		return err
	}

	if err := s.ambulanceRepo.Create(ctx, ambulance); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{
		"ambulance_id": ambulance.ID.Hex(),
		"hospital_id":  ambulance.HospitalID.Hex(),
	}).Info("ambulance registered")
	return nil
}

func (s *directoryService) ListFleet(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return s.ambulanceRepo.ListByHospital(ctx, hospitalID)
}

func (s *directoryService) ListAvailableFleet(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return s.ambulanceRepo.ListAvailableByHospital(ctx, hospitalID)
}
