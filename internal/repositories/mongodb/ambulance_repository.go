package mongodb

import (
	"context"
	"fmt"
	"time"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/interfaces"
	"pulsepath/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ambulanceRepository struct {
	collection *mongo.Collection
}

func NewAmbulanceRepository(db *database.MongoDB) interfaces.AmbulanceRepository {
	return &ambulanceRepository{
		collection: db.Collection("ambulances"),
	}
}

func (r *ambulanceRepository) Create(ctx context.Context, ambulance *models.Ambulance) error {
	if ambulance.ID.IsZero() {
		ambulance.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	ambulance.CreatedAt = now
	ambulance.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, ambulance); err != nil {
		return models.NewUnavailable(fmt.Errorf("failed to create ambulance: %w", err))
	}
	return nil
}

func (r *ambulanceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ambulance, error) {
	var ambulance models.Ambulance
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ambulance)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.NewNotFound(id)
		}
		return nil, models.NewUnavailable(fmt.Errorf("failed to get ambulance: %w", err))
	}
	return &ambulance, nil
}

func (r *ambulanceRepository) ListByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return r.find(ctx, bson.M{"hospital_id": hospitalID})
}

func (r *ambulanceRepository) ListAvailableByHospital(ctx context.Context, hospitalID primitive.ObjectID) ([]*models.Ambulance, error) {
	return r.find(ctx, bson.M{"hospital_id": hospitalID, "available": true})
}

func (r *ambulanceRepository) find(ctx context.Context, filter bson.M) ([]*models.Ambulance, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "call_sign", Value: 1}}))
	if err != nil {
		return nil, models.NewUnavailable(fmt.Errorf("failed to find ambulances: %w", err))
	}
	defer cursor.Close(ctx)

	var ambulances []*models.Ambulance
	for cursor.Next(ctx) {
		var ambulance models.Ambulance
		if err := cursor.Decode(&ambulance); err != nil {
			return nil, models.NewUnavailable(fmt.Errorf("failed to decode ambulance: %w", err))
		}
		ambulances = append(ambulances, &ambulance)
	}
	return ambulances, nil
}
