package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Principals   *mongo.Collection
	Appointments *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		Principals:   db.Collection("principals"),
		Appointments: db.Collection("appointments"),
	}

	return client, cols, nil
}

// EnsureIndexes creates the index set the services rely on. Email uniqueness
// is scoped per role via the compound index; the slot-claim index only exists
// when strict slot exclusivity is enabled, and ignores terminal appointments
// so a cancelled or rejected booking frees the slot.
func EnsureIndexes(ctx context.Context, cols *Collections, strictSlotClaim bool) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.Principals.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	appointmentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	if strictSlotClaim {
		appointmentIndexes = append(appointmentIndexes, mongo.IndexModel{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": bson.A{"pending", "accepted"}}}),
		})
	}

	_, err = cols.Appointments.Indexes().CreateMany(indexTimeout, appointmentIndexes)
	return err
}
