// Package records keeps the audit trail of background work in Mongo:
// member import runs with their per-row outcomes, and reminder attempts.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"acp_dues/internal/apperr"
	mg "acp_dues/internal/config/connections/mongo"
)

const ImportRecordsCollection = "import_records"

const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

type ImportRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Type      string             `bson:"type" json:"type"`
	Status    string             `bson:"status" json:"status"`
	Count     int                `bson:"count" json:"count"`
	Failed    int                `bson:"failed" json:"failed"`
	Errors    *string            `bson:"errors,omitempty" json:"errors,omitempty"`
	Bucket    *string            `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key       *string            `bson:"key,omitempty" json:"key,omitempty"`
	SizeBytes *int64             `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Journal writes to the audit collections. A Journal over a nil or
// disconnected Mongo reports mongo.ErrClientDisconnected on every call.
type Journal struct {
	m   *mg.Mongo
	log zerolog.Logger
	now func() time.Time
}

func NewJournal(m *mg.Mongo, log zerolog.Logger) *Journal {
	return &Journal{m: m, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (j *Journal) coll(name string) (*mongo.Collection, error) {
	if !j.m.Ready() {
		return nil, mongo.ErrClientDisconnected
	}
	return j.m.Database.Collection(name), nil
}

func (j *Journal) CreateImportRecord(ctx context.Context, rec ImportRecord) (string, error) {
	coll, err := j.coll(ImportRecordsCollection)
	if err != nil {
		return "", err
	}

	now := j.now()
	rec.ID = primitive.NilObjectID
	rec.CreatedAt, rec.UpdatedAt = now, now
	if rec.Status == "" {
		rec.Status = StatusUploaded
	}

	res, err := coll.InsertOne(ctx, rec, options.InsertOne())
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (j *Journal) FindImportRecord(ctx context.Context, id string) (ImportRecord, error) {
	var out ImportRecord
	coll, err := j.coll(ImportRecordsCollection)
	if err != nil {
		return out, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return out, apperr.NotFound("import record %s", id)
	}
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, apperr.NotFound("import record %s", id)
		}
		return out, err
	}
	return out, nil
}

func (j *Journal) ListImportRecords(ctx context.Context, limit, skip int64) ([]ImportRecord, int64, error) {
	coll, err := j.coll(ImportRecordsCollection)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}

	cur, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	recs := make([]ImportRecord, 0)
	if err := cur.All(ctx, &recs); err != nil {
		return nil, 0, err
	}

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		total = int64(len(recs))
	}
	return recs, total, nil
}

// FinishImportRecord stores the final status and row counters of a run.
func (j *Journal) FinishImportRecord(ctx context.Context, id, status string, count, failed int, errs *string) error {
	return j.updateImportRecord(ctx, id, bson.M{
		"status": status,
		"count":  count,
		"failed": failed,
		"errors": errs,
	})
}

func (j *Journal) SetImportStatus(ctx context.Context, id, status string) error {
	if status == "" {
		return fmt.Errorf("empty status")
	}
	return j.updateImportRecord(ctx, id, bson.M{"status": status})
}

func (j *Journal) updateImportRecord(ctx context.Context, id string, set bson.M) error {
	coll, err := j.coll(ImportRecordsCollection)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFound("import record %s", id)
	}

	set["updated_at"] = j.now()
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("import record %s", id)
	}
	return nil
}
