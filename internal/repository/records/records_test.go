package records

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"acp_dues/internal/apperr"
)

func TestJournalWithoutMongo(t *testing.T) {
	j := NewJournal(nil, zerolog.Nop())
	ctx := context.Background()

	_, err := j.CreateImportRecord(ctx, ImportRecord{Type: ModelTypeMember})
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)

	assert.ErrorIs(t, j.LogReminder(ctx, ReminderLog{MemberID: "m1"}), mongo.ErrClientDisconnected)

	_, err = j.RemindersForMember(ctx, "m1", 10)
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)

	// best-effort logging never panics or fails the caller
	j.LogItem(ctx, LogParams{ModelType: ModelTypeMember, Payload: map[string]string{"name": "Ana"}})
}

func TestFindImportRecordRejectsBadID(t *testing.T) {
	j := NewJournal(nil, zerolog.Nop())
	_, err := j.FindImportRecord(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)
}

func TestUpdateRejectsEmptyStatus(t *testing.T) {
	j := NewJournal(nil, zerolog.Nop())
	err := j.SetImportStatus(context.Background(), "656f1f77bcf86cd799439011", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}
