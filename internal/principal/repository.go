package principal

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Insert(ctx context.Context, p Principal) error
	GetByID(ctx context.Context, id string) (Principal, error)
	GetByEmail(ctx context.Context, role, email string) (Principal, error)
	EmailExistsAnyRole(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, role, id string, fields map[string]interface{}, now time.Time) (Principal, error)
	Delete(ctx context.Context, role, id string) (bool, error)
	ListByRole(ctx context.Context, role string, limit, offset int64) ([]Principal, error)

	AddToRoster(ctx context.Context, doctorID, patientID string) error
	AppendHistory(ctx context.Context, patientID string, entry HistoryEntry) error
	SyncHistoryStatus(ctx context.Context, patientID, appointmentID, status string) (bool, error)
	SyncHistoryStatusBySlot(ctx context.Context, patientID, doctorID, date, slot, status string) (bool, error)
	SetHistoryPrescription(ctx context.Context, patientID, appointmentID, prescription string) (bool, error)
	ReplaceHistory(ctx context.Context, patientID string, entries []HistoryEntry) error
	ListIDsByRole(ctx context.Context, role string) ([]string, error)

	Ledger(ctx context.Context, doctorID string) ([]AvailabilityEntry, error)
	SetLedger(ctx context.Context, doctorID string, entries []AvailabilityEntry, now time.Time) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Insert(ctx context.Context, p Principal) error {
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Principal, error) {
	var p Principal
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, role, email string) (Principal, error) {
	var p Principal
	if err := r.col.FindOne(ctx, bson.M{"role": role, "email": email}).Decode(&p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (r *MongoRepository) EmailExistsAnyRole(ctx context.Context, email string) (bool, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MongoRepository) Update(ctx context.Context, role, id string, fields map[string]interface{}, now time.Time) (Principal, error) {
	set := bson.M{"updatedAt": now}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Principal
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "role": role}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		return Principal{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, role, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "role": role})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// ListByRole returns principals of one role sorted by name; limit <= 0 means
// no paging.
func (r *MongoRepository) ListByRole(ctx context.Context, role string, limit, offset int64) ([]Principal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(limit).SetSkip(offset)
	}
	cursor, err := r.col.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Principal, 0)
	for cursor.Next(ctx) {
		var p Principal
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) AddToRoster(ctx context.Context, doctorID, patientID string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doctorID, "role": RoleDoctor},
		bson.M{"$addToSet": bson.M{"roster": patientID}},
	)
	return err
}

func (r *MongoRepository) AppendHistory(ctx context.Context, patientID string, entry HistoryEntry) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": patientID, "role": RolePatient},
		bson.M{"$push": bson.M{"history": entry}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) SyncHistoryStatus(ctx context.Context, patientID, appointmentID, status string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": patientID, "role": RolePatient},
		bson.M{"$set": bson.M{"history.$[entry].status": status}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"entry.appointmentId": appointmentID}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// SyncHistoryStatusBySlot is the legacy cancel-path match: history entries
// written before appointment ids were mirrored carry no appointmentId, so the
// entry is located by (doctorId, date, time) instead.
func (r *MongoRepository) SyncHistoryStatusBySlot(ctx context.Context, patientID, doctorID, date, slot, status string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": patientID, "role": RolePatient},
		bson.M{"$set": bson.M{"history.$[entry].status": status}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{
				"entry.doctorId": doctorID,
				"entry.date":     date,
				"entry.time":     slot,
			}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoRepository) SetHistoryPrescription(ctx context.Context, patientID, appointmentID, prescription string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": patientID, "role": RolePatient},
		bson.M{"$set": bson.M{"history.$[entry].prescription": prescription}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"entry.appointmentId": appointmentID}},
		}),
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoRepository) ReplaceHistory(ctx context.Context, patientID string, entries []HistoryEntry) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": patientID, "role": RolePatient},
		bson.M{"$set": bson.M{"history": entries}},
	)
	return err
}

func (r *MongoRepository) ListIDsByRole(ctx context.Context, role string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.col.Find(ctx, bson.M{"role": role}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *MongoRepository) Ledger(ctx context.Context, doctorID string) ([]AvailabilityEntry, error) {
	var p Principal
	opts := options.FindOne().SetProjection(bson.M{"availability": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": doctorID, "role": RoleDoctor}, opts).Decode(&p); err != nil {
		return nil, err
	}
	return p.Availability, nil
}

func (r *MongoRepository) SetLedger(ctx context.Context, doctorID string, entries []AvailabilityEntry, now time.Time) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": doctorID, "role": RoleDoctor},
		bson.M{"$set": bson.M{"availability": entries, "updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
