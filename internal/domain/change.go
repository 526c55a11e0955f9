package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

type Table string

const (
	TableColumns Table = "columns"
	TableTasks   Table = "tasks"
	TableMembers Table = "board_members"
)

// ChangeEvent describes one committed row change on a board. New is set for
// inserts and updates, Old for deletes (and for updates when known).
type ChangeEvent struct {
	Kind    ChangeKind      `json:"kind"`
	Table   Table           `json:"table"`
	BoardID uuid.UUID       `json:"board_id"`
	Old     json.RawMessage `json:"old,omitempty"`
	New     json.RawMessage `json:"new,omitempty"`
	At      time.Time       `json:"at"`
}

// NewChangeEvent marshals the row images into a ChangeEvent.
func NewChangeEvent(kind ChangeKind, table Table, boardID uuid.UUID, oldRow, newRow any) (ChangeEvent, error) {
	ev := ChangeEvent{Kind: kind, Table: table, BoardID: boardID, At: time.Now().UTC()}
	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("domain.NewChangeEvent: old: %w", err)
		}
		ev.Old = raw
	}
	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("domain.NewChangeEvent: new: %w", err)
		}
		ev.New = raw
	}
	return ev, nil
}

// Row returns the image the event is about: New when present, Old otherwise.
func (e ChangeEvent) Row() json.RawMessage {
	if len(e.New) > 0 {
		return e.New
	}
	return e.Old
}
