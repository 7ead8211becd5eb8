package records

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ReminderLogsCollection = "reminder_logs"

type ReminderLog struct {
	MemberID  string    `bson:"member_id" json:"member_id"`
	Channel   string    `bson:"channel" json:"channel"`
	Recipient string    `bson:"recipient,omitempty" json:"recipient,omitempty"`
	AsOf      string    `bson:"as_of" json:"as_of"`
	TotalOwed string    `bson:"total_owed" json:"total_owed"`
	OK        bool      `bson:"ok" json:"ok"`
	Info      string    `bson:"info,omitempty" json:"info,omitempty"`
	SentBy    string    `bson:"sent_by" json:"sent_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (j *Journal) LogReminder(ctx context.Context, r ReminderLog) error {
	coll, err := j.coll(ReminderLogsCollection)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = j.now()
	}
	_, err = coll.InsertOne(ctx, r, options.InsertOne())
	return err
}

// RemindersForMember returns the most recent attempts for memberID, newest first.
func (j *Journal) RemindersForMember(ctx context.Context, memberID string, limit int64) ([]ReminderLog, error) {
	coll, err := j.coll(ReminderLogsCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := coll.Find(ctx, bson.M{"member_id": memberID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]ReminderLog, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
