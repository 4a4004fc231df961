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

type hospitalRepository struct {
	collection *mongo.Collection
}

func NewHospitalRepository(db *database.MongoDB) interfaces.HospitalRepository {
	return &hospitalRepository{
		collection: db.Collection("hospitals"),
	}
}

func (r *hospitalRepository) Create(ctx context.Context, hospital *models.Hospital) error {
	if hospital.ID.IsZero() {
		hospital.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	hospital.CreatedAt = now
	hospital.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, hospital); err != nil {
		return models.NewUnavailable(fmt.Errorf("failed to create hospital: %w", err))
	}
	return nil
}

func (r *hospitalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	var hospital models.Hospital
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&hospital)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.NewNotFound(id)
		}
		return nil, models.NewUnavailable(fmt.Errorf("failed to get hospital: %w", err))
	}
	return &hospital, nil
}

func (r *hospitalRepository) List(ctx context.Context) ([]*models.Hospital, error) {
	return r.find(ctx, bson.M{})
}

func (r *hospitalRepository) ListByType(ctx context.Context, hospitalType models.HospitalType) ([]*models.Hospital, error) {
	return r.find(ctx, bson.M{"type": hospitalType})
}

func (r *hospitalRepository) find(ctx context.Context, filter bson.M) ([]*models.Hospital, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, models.NewUnavailable(fmt.Errorf("failed to find hospitals: %w", err))
	}
	defer cursor.Close(ctx)

	var hospitals []*models.Hospital
	for cursor.Next(ctx) {
		var hospital models.Hospital
		if err := cursor.Decode(&hospital); err != nil {
			return nil, models.NewUnavailable(fmt.Errorf("failed to decode hospital: %w", err))
		}
		hospitals = append(hospitals, &hospital)
	}
	return hospitals, nil
}
