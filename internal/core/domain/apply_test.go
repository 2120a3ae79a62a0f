package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Lifecycle(t *testing.T) {
	id := uuid.New()
	state, events := history(t, id,
		createCmd(id),
		AcknowledgeAlert{AlertID: id, AcknowledgedBy: "alice"},
		ResolveAlert{AlertID: id, ResolvedBy: "bob", ResolutionDetails: "cleared space"},
		CloseAlert{AlertID: id, ClosedBy: "bob"},
	)

	require.Len(t, events, 4)
	assert.Equal(t, []EventType{EventAlertCreated, EventAlertAcknowledged, EventAlertResolved, EventAlertClosed},
		[]EventType{events[0].Type, events[1].Type, events[2].Type, events[3].Type})

	var statuses []AlertStatus
	var s Alert
	for _, e := range events {
		s = Apply(s, e)
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []AlertStatus{AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusClosed}, statuses)

	assert.Equal(t, id, state.ID)
	assert.Equal(t, int64(4), state.Version)
	assert.Equal(t, "alice", state.AcknowledgedBy)
	assert.Equal(t, "bob", state.ResolvedBy)
	assert.Equal(t, "cleared space", state.ResolutionDetails)
	assert.Equal(t, "bob", state.ClosedBy)
	require.NotNil(t, state.ClosedAt)
	assert.Equal(t, baseTime.Add(3*time.Second), *state.ClosedAt)
	assert.Equal(t, baseTime.Add(3*time.Second), state.UpdatedAt)
	assert.Equal(t, baseTime, state.CreatedAt)
}

func TestApply_NotesAndAssignment(t *testing.T) {
	id := uuid.New()
	state, _ := history(t, id,
		createCmd(id),
		AddNote{AlertID: id, Text: "first", Author: "alice"},
		AssignAlert{AlertID: id, Assignee: "carol", AssignedBy: "alice"},
		AddNote{AlertID: id, Text: "second", Author: "carol"},
	)

	require.Len(t, state.Notes, 2)
	assert.Equal(t, "first", state.Notes[0].Text)
	assert.Equal(t, "second", state.Notes[1].Text)
	assert.Equal(t, "carol", state.Assignee)
	assert.Equal(t, "alice", state.AssignedBy)
}

func TestApply_SameAssigneeLeavesUpdatedAt(t *testing.T) {
	id := uuid.New()
	state, events := history(t, id,
		createCmd(id),
		AssignAlert{AlertID: id, Assignee: "carol"},
		AssignAlert{AlertID: id, Assignee: "carol"},
	)

	assert.Len(t, events, 2)
	assert.Equal(t, baseTime.Add(time.Second), state.UpdatedAt)
}

func TestApply_UpdatedAtNeverMovesBack(t *testing.T) {
	id := uuid.New()
	state, _ := history(t, id, createCmd(id))

	stale := Event{
		ID:      uuid.New(),
		AlertID: id,
		Version: 2,
		Type:    EventNoteAdded,
		Payload: NoteAdded{Note: AlertNote{ID: uuid.New(), Text: "late", Author: "a", Timestamp: baseTime.Add(-time.Hour)}},
	}
	next := Apply(state, stale)

	assert.Equal(t, state.UpdatedAt, next.UpdatedAt)
	assert.Len(t, next.Notes, 1)
	assert.Empty(t, state.Notes)
}

func TestReplay(t *testing.T) {
	id := uuid.New()
	desc := "disk still full"

	t.Run("equals live state", func(t *testing.T) {
		live, events := history(t, id,
			createCmd(id),
			UpdateAlert{AlertID: id, Description: &desc, Details: map[string]any{"host": "db-1"}},
			AddNote{AlertID: id, Text: "investigating", Author: "alice"},
			AssignAlert{AlertID: id, Assignee: "carol"},
			ResolveAlert{AlertID: id, ResolvedBy: "carol", ResolutionDetails: "rotated logs"},
			DeleteAlert{AlertID: id, DeletedBy: "ops", Reason: "duplicate"},
		)

		replayed, err := Replay(events)

		require.NoError(t, err)
		assert.Equal(t, live, replayed)
		assert.Equal(t, AlertStatusDeleted, replayed.Status)
		assert.Equal(t, "duplicate", replayed.DeletionReason)
	})

	t.Run("survives payload encoding", func(t *testing.T) {
		live, events := history(t, id,
			createCmd(id),
			AddNote{AlertID: id, Text: "investigating", Author: "alice"},
			CloseAlert{AlertID: id, ClosedBy: "bob"},
		)

		decoded := make([]Event, len(events))
		for i, e := range events {
			raw, err := EncodePayload(e.Payload)
			require.NoError(t, err)
			p, err := DecodePayload(e.Type, raw)
			require.NoError(t, err)
			e.Payload = p
			decoded[i] = e
		}

		replayed, err := Replay(decoded)

		require.NoError(t, err)
		assert.Equal(t, live.Status, replayed.Status)
		assert.Equal(t, live.Notes, replayed.Notes)
		assert.Equal(t, live.Version, replayed.Version)
		assert.True(t, live.UpdatedAt.Equal(replayed.UpdatedAt))
	})

	t.Run("empty history yields absent alert", func(t *testing.T) {
		state, err := Replay(nil)

		require.NoError(t, err)
		assert.False(t, state.Exists())
	})

	t.Run("rejects version gaps", func(t *testing.T) {
		_, events := history(t, id, createCmd(id), AssignAlert{AlertID: id, Assignee: "carol"})
		events[1].Version = 3

		_, err := Replay(events)

		assert.ErrorIs(t, err, ErrCorruptHistory)
	})

	t.Run("rejects history not starting with creation", func(t *testing.T) {
		_, events := history(t, id, createCmd(id), AssignAlert{AlertID: id, Assignee: "carol"})
		events[1].Version = 1

		_, err := Replay(events[1:])

		assert.ErrorIs(t, err, ErrCorruptHistory)
	})
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := DecodePayload("alert.exploded", []byte(`{}`))

	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestAlertQuery_Normalize(t *testing.T) {
	q := AlertQuery{Page: 0, Limit: 500, Keyword: "  disk "}.Normalize()

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageLimit, q.Limit)
	assert.Equal(t, "disk", q.Keyword)
	assert.Equal(t, DefaultPageLimit, AlertQuery{}.Normalize().Limit)
	assert.Equal(t, 40, AlertQuery{Page: 3, Limit: 20}.Offset())
}
