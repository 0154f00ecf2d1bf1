package board

import "context"

// Mutator applies a board mutation to the live board document.
type Mutator interface {
	Mutate(ctx context.Context, fn func(Board) (Board, error)) error
}

// ItemSaver commits edited items to the board. Items not yet on the board
// are appended to SectionID.
type ItemSaver struct {
	Doc       Mutator
	SectionID string
}

// Save writes it into the board through the document replica.
func (s ItemSaver) Save(ctx context.Context, it Item) error {
	return s.Doc.Mutate(ctx, func(b Board) (Board, error) {
		return b.UpsertItem(s.SectionID, it)
	})
}

// ItemIdentity addresses board items by their embedded id.
type ItemIdentity struct{}

func (ItemIdentity) ID(it Item) string { return it.ID }

func (ItemIdentity) WithID(it Item, id string) Item {
	it.ID = id
	return it
}
