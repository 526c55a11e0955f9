package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ColumnPaletteSize is the number of display colors a column can pick from.
const ColumnPaletteSize = 8

type Column struct {
	ID         uuid.UUID `json:"id"`
	BoardID    uuid.UUID `json:"board_id"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	ColorIndex *int      `json:"colorIndex,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PickColorIndex chooses a palette slot for a new column: a random slot no
// existing column uses, or any random slot once all are taken. intn must
// behave like rand.IntN.
func PickColorIndex(existing []*Column, intn func(int) int) int {
	used := make(map[int]bool, len(existing))
	for _, c := range existing {
		if c.ColorIndex != nil {
			used[*c.ColorIndex] = true
		}
	}
	free := make([]int, 0, ColumnPaletteSize)
	for i := range ColumnPaletteSize {
		if !used[i] {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return intn(ColumnPaletteSize)
	}
	return free[intn(len(free))]
}

type ColumnRepository interface {
	// Create inserts c. A non-positive Position is replaced by the next free
	// position at the end of the board.
	Create(ctx context.Context, c *Column) error
	GetByID(ctx context.Context, id uuid.UUID) (*Column, error)
	ListByBoard(ctx context.Context, boardID uuid.UUID) ([]*Column, error)
	Update(ctx context.Context, c *Column) error
	// Delete removes the column together with every task in it.
	Delete(ctx context.Context, id uuid.UUID) error
}
