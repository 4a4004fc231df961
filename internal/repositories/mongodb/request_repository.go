package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/internal/utils"
	"pulsepath/pkg/cache"
	"pulsepath/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type requestRepository struct {
	db         *database.MongoDB
	collection *mongo.Collection
	hospitals  *mongo.Collection
	ambulances *mongo.Collection
	cache      *cache.RedisCache
	onCommit   func(*models.RequestEvent)
}

// NewRequestRepository builds the durable request store. The onCommit hook
// receives every committed transition; pass nil to disable fanout. The hook
// fires after the transaction returns, so on this backend two concurrent
// transitions may reach subscribers out of commit order; consumers must order
// by RequestEvent.Version, not by delivery order.
func NewRequestRepository(db *database.MongoDB, redisCache *cache.RedisCache, onCommit func(*models.RequestEvent)) interfaces.RequestRepository {
	return &requestRepository{
		db:         db,
		collection: db.Collection("sos_requests"),
		hospitals:  db.Collection("hospitals"),
		ambulances: db.Collection("ambulances"),
		cache:      redisCache,
		onCommit:   onCommit,
	}
}

func (r *requestRepository) Create(ctx context.Context, request *models.SOSRequest) error {
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.Status = models.RequestStatusPending
	request.Version = 1

	if _, err := r.collection.InsertOne(ctx, request); err != nil {
		return models.NewUnavailable(fmt.Errorf("failed to create sos request: %w", err))
	}

	r.cacheRequest(ctx, request)
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SOSRequest, error) {
	if req := r.requestFromCache(ctx, id); req != nil {
		return req, nil
	}

	var request models.SOSRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.NewNotFound(id)
		}
		return nil, models.NewUnavailable(fmt.Errorf("failed to get sos request: %w", err))
	}

	r.cacheRequest(ctx, &request)
	return &request, nil
}

// ApplyTransition swaps status and side effects inside one session
// transaction: the conditional update on the request document is the
// compare-and-swap, and the bed/ambulance writes commit or abort with it.
func (r *requestRepository) ApplyTransition(ctx context.Context, id primitive.ObjectID, expected, next models.RequestStatus, mutation *models.TransitionMutation) (*models.SOSRequest, error) {
	if mutation == nil {
		mutation = &models.TransitionMutation{}
	}

	result, err := r.db.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		now := time.Now().UTC()

		set := bson.M{
			"status":     next,
			"updated_at": now,
		}
		switch next {
		case models.RequestStatusAccepted:
			set["accepted_at"] = now
		case models.RequestStatusDispatched:
			set["dispatched_at"] = now
		case models.RequestStatusCompleted:
			set["completed_at"] = now
		case models.RequestStatusCancelled:
			set["cancelled_at"] = now
			set["cancelled_by"] = mutation.CancelledBy
		}
		if mutation.AssignHospitalID != nil {
			set["assigned_hospital_id"] = mutation.AssignHospitalID
		}
		if mutation.AssignAmbulanceID != nil {
			set["assigned_ambulance_id"] = mutation.AssignAmbulanceID
		}

		var updated models.SOSRequest
		err := r.collection.FindOneAndUpdate(
			sessCtx,
			bson.M{"_id": id, "status": expected},
			bson.M{"$set": set, "$inc": bson.M{"version": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, r.classifySwapMiss(sessCtx, id)
			}
			return nil, models.NewUnavailable(fmt.Errorf("failed to apply transition: %w", err))
		}

		if mutation.BedHospitalID != nil && mutation.BedDelta != 0 {
			if err := r.adjustBeds(sessCtx, id, mutation); err != nil {
				return nil, err
			}
		}

		if mutation.AmbulanceID != nil && mutation.AmbulanceAvailable != nil {
			if err := r.flipAmbulance(sessCtx, id, updated.Status, mutation); err != nil {
				return nil, err
			}
		}

		return &updated, nil
	})
	if err != nil {
		var de *models.DispatchError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, models.NewUnavailable(err)
	}

	updated := result.(*models.SOSRequest)
	r.invalidateRequestCache(ctx, id)
	if r.onCommit != nil {
		r.onCommit(&models.RequestEvent{
			RequestID: updated.ID,
			OldStatus: expected,
			NewStatus: updated.Status,
			Version:   updated.Version,
			Request:   updated,
			EmittedAt: updated.UpdatedAt,
		})
	}
	return updated, nil
}

// classifySwapMiss distinguishes an unknown id from a lost race.
func (r *requestRepository) classifySwapMiss(ctx context.Context, id primitive.ObjectID) error {
	var current models.SOSRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&current)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.NewNotFound(id)
		}
		return models.NewUnavailable(fmt.Errorf("failed to inspect sos request: %w", err))
	}
	return models.NewStaleState(id, current.Status)
}

func (r *requestRepository) adjustBeds(ctx context.Context, requestID primitive.ObjectID, mutation *models.TransitionMutation) error {
	field := fmt.Sprintf("capacity.%s.available", mutation.BedWard)

	filter := bson.M{"_id": mutation.BedHospitalID}
	if mutation.BedDelta < 0 {
		// The guard keeps the counter from ever going negative; a miss
		// means the last bed was taken by a concurrent accept.
		filter[field] = bson.M{"$gte": -mutation.BedDelta}
	} else {
		filter[field] = bson.M{"$exists": true}
	}

	res, err := r.hospitals.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: mutation.BedDelta}})
	if err != nil {
		return models.NewUnavailable(fmt.Errorf("failed to adjust bed counter: %w", err))
	}
	if res.MatchedCount == 0 {
		return models.NewCapacityExceeded(requestID, mutation.BedWard)
	}
	return nil
}

func (r *requestRepository) flipAmbulance(ctx context.Context, requestID primitive.ObjectID, current models.RequestStatus, mutation *models.TransitionMutation) error {
	filter := bson.M{"_id": mutation.AmbulanceID}
	if !*mutation.AmbulanceAvailable {
		// Claiming a unit: only one dispatch may observe it available.
		filter["available"] = true
	}

	res, err := r.ambulances.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"available": *mutation.AmbulanceAvailable, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return models.NewUnavailable(fmt.Errorf("failed to update ambulance availability: %w", err))
	}
	if res.MatchedCount == 0 {
		if !*mutation.AmbulanceAvailable {
			return models.NewStaleState(requestID, current)
		}
		return models.NewNotFound(*mutation.AmbulanceID)
	}
	return nil
}

func (r *requestRepository) ListPending(ctx context.Context) ([]*models.SOSRequest, error) {
	return r.find(ctx, bson.M{"status": models.RequestStatusPending})
}

func (r *requestRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return r.find(ctx, bson.M{"patient_id": patientID})
}

func (r *requestRepository) ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return r.find(ctx, bson.M{"assigned_hospital_id": hospitalID})
}

func (r *requestRepository) ListByAmbulance(ctx context.Context, ambulanceID primitive.ObjectID) ([]*models.SOSRequest, error) {
	return r.find(ctx, bson.M{
		"assigned_ambulance_id": ambulanceID,
		"status": bson.M{"$in": []models.RequestStatus{
			models.RequestStatusAccepted,
			models.RequestStatusDispatched,
		}},
	})
}

func (r *requestRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.SOSRequest, error) {
	return r.find(ctx, bson.M{
		"status":     models.RequestStatusPending,
		"created_at": bson.M{"$lt": cutoff},
	})
}

func (r *requestRepository) find(ctx context.Context, filter bson.M) ([]*models.SOSRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, models.NewUnavailable(fmt.Errorf("failed to find sos requests: %w", err))
	}
	defer cursor.Close(ctx)

	var requests []*models.SOSRequest
	for cursor.Next(ctx) {
		var request models.SOSRequest
		if err := cursor.Decode(&request); err != nil {
			return nil, models.NewUnavailable(fmt.Errorf("failed to decode sos request: %w", err))
		}
		requests = append(requests, &request)
	}
	return requests, nil
}

// Cache operations. Snapshots are short-lived read hints; the write path
// never consults them.
func (r *requestRepository) cacheRequest(ctx context.Context, request *models.SOSRequest) {
	if r.cache == nil || request.Status.Terminal() {
		return
	}
	r.cache.Set(ctx, requestCacheKey(request.ID), request, 5*time.Minute)
}

func (r *requestRepository) requestFromCache(ctx context.Context, id primitive.ObjectID) *models.SOSRequest {
	if r.cache == nil {
		return nil
	}
	var request models.SOSRequest
	if err := r.cache.Get(ctx, requestCacheKey(id), &request); err != nil {
		return nil
	}
	return &request
}

func (r *requestRepository) invalidateRequestCache(ctx context.Context, id primitive.ObjectID) {
	if r.cache != nil {
		r.cache.Delete(ctx, requestCacheKey(id))
	}
}

func requestCacheKey(id primitive.ObjectID) string {
	return utils.CacheRequestPrefix + id.Hex()
}
