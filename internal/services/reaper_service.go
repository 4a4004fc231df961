package services

import (
	"context"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReaperService cancels pending requests nobody accepted within the
// configured window. It runs on a cron schedule and goes through the same
// compare-and-swap as every other transition, so a hospital accepting at the
// same instant simply wins the race and the reaper moves on.
type ReaperService struct {
	requestRepo interfaces.RequestRepository
	window      time.Duration
	schedule    string
	cron        *cron.Cron
	log         *logger.Logger
}

func NewReaperService(requestRepo interfaces.RequestRepository, window time.Duration, schedule string, log *logger.Logger) *ReaperService {
	return &ReaperService{
		requestRepo: requestRepo,
		window:      window,
		schedule:    schedule,
		cron:        cron.New(),
		log:         log,
	}
}

// Start registers the sweep job and begins the schedule.
func (s *ReaperService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", s.schedule).Info("stale request reaper started")
	return nil
}

func (s *ReaperService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep cancels every pending request older than the window. Each cancel is
// independent; one lost race or storage error does not stop the pass.
func (s *ReaperService) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.window)

	stale, err := s.requestRepo.ListStalePending(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("reaper sweep failed to list stale requests")
		return 0
	}

	cancelled := 0
	for _, req := range stale {
		if err := s.cancelOne(ctx, req.ID); err != nil {
			// StaleState means a hospital got there first. That is the
			// desired outcome, not a failure.
			if models.IsKind(err, models.ErrKindStaleState) || models.IsKind(err, models.ErrKindInvalidTransition) {
				continue
			}
			s.log.WithSOSID(req.ID).WithError(err).Warn("reaper failed to cancel stale request")
			continue
		}
		cancelled++
		s.log.WithSOSID(req.ID).Info("stale pending request auto-cancelled")
	}

	return cancelled
}

func (s *ReaperService) cancelOne(ctx context.Context, id primitive.ObjectID) error {
	mutation := &models.TransitionMutation{CancelledBy: string(models.RoleSystem)}
	_, err := s.requestRepo.ApplyTransition(ctx, id, models.RequestStatusPending, models.RequestStatusCancelled, mutation)
	return err
}
