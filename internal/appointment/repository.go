package appointment

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, appt Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	UpdateStatus(ctx context.Context, id, status string, now time.Time) (Appointment, error)
	SetPrescription(ctx context.Context, id, prescription string, now time.Time) (Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, appt Appointment) error {
	_, err := r.col.InsertOne(ctx, appt)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) (Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": now,
		},
	}

	var updated Appointment
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

func (r *MongoRepository) SetPrescription(ctx context.Context, id, prescription string, now time.Time) (Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"prescription": prescription,
			"updatedAt":    now,
		},
	}

	var updated Appointment
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

func (r *MongoRepository) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	return r.list(ctx, bson.M{"doctorId": doctorID}, opts)
}

// ListByPatient returns the patient's appointments most recent booking first.
func (r *MongoRepository) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.list(ctx, bson.M{"patientId": patientID}, opts)
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Appointment, error) {
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Appointment, 0)
	for cursor.Next(ctx) {
		var appt Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, err
		}
		items = append(items, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
