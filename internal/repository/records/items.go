package records

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImportRecordItemsCollection = "import_record_items"

const ModelTypeMember = "member"

type Item struct {
	ImportRecordID string    `bson:"import_record_id" json:"import_record_id"`
	ModelType      string    `bson:"model_type" json:"model_type"`
	ModelID        string    `bson:"model_id" json:"model_id"`
	Row            int       `bson:"row" json:"row"`
	Payload        string    `bson:"payload" json:"payload"`
	Status         string    `bson:"status" json:"status"`
	Errors         string    `bson:"errors,omitempty" json:"errors,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

type LogParams struct {
	ImportRecordID string
	ModelType      string
	ModelID        string
	Row            int
	Payload        map[string]string
	Status         string
	Errors         string
}

func (j *Journal) InsertItem(ctx context.Context, item Item) error {
	coll, err := j.coll(ImportRecordItemsCollection)
	if err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = j.now()
	}
	_, err = coll.InsertOne(ctx, item, options.InsertOne())
	return err
}

// LogItem records one processed row. Failures are logged and swallowed.
func (j *Journal) LogItem(ctx context.Context, p LogParams) {
	b, _ := json.Marshal(p.Payload)

	err := j.InsertItem(ctx, Item{
		ImportRecordID: p.ImportRecordID,
		ModelType:      p.ModelType,
		ModelID:        p.ModelID,
		Row:            p.Row,
		Payload:        string(b),
		Status:         p.Status,
		Errors:         p.Errors,
	})
	if err != nil {
		j.log.Warn().Err(err).
			Str("model_type", p.ModelType).
			Str("model_id", p.ModelID).
			Str("status", p.Status).
			Msg("import item not recorded")
	}
}
