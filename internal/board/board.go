// Package board defines the priorities board: a single document holding a
// title, a date label and sections of text items arranged in columns.
//
// All mutations are pure: they return a new Board and never modify the
// receiver, so a replica can hand the current value to a mutation without
// aliasing its own state.
package board

import (
	"errors"
	"fmt"
	"sort"
)

// Path is the store root holding the board document.
const Path = "board"

var (
	ErrSectionNotFound = errors.New("section not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrDuplicateID     = errors.New("id already in use")
	ErrInvalidColumn   = errors.New("column must be a positive integer")
	ErrUnknownIcon     = errors.New("unknown icon")
	ErrMissingID       = errors.New("id is required")
)

// Icon selects a glyph from the fixed icon set.
type Icon string

const (
	IconFactory    Icon = "factory"
	IconTrendingUp Icon = "trending-up"
	IconSettings   Icon = "settings"
	IconAlert      Icon = "alert-circle"
	IconCheck      Icon = "check"
	IconShield     Icon = "shield"
	IconWrench     Icon = "wrench"
	IconTruck      Icon = "truck"
	IconUsers      Icon = "users"
	IconZap        Icon = "zap"
)

var icons = map[Icon]bool{
	IconFactory: true, IconTrendingUp: true, IconSettings: true, IconAlert: true,
	IconCheck: true, IconShield: true, IconWrench: true, IconTruck: true,
	IconUsers: true, IconZap: true,
}

// Validate checks the icon is part of the fixed set.
func (i Icon) Validate() error {
	if !icons[i] {
		return fmt.Errorf("%w: %q", ErrUnknownIcon, string(i))
	}
	return nil
}

// Item is one line on the board. Unlike KPIs, items carry their own id
// because they live nested inside the board document.
type Item struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
	HasKPI bool    `json:"hasKpi"` // render value/target bars
}

// Section groups items under a title in one column.
type Section struct {
	ID     string `json:"id"`
	Column int    `json:"column"`
	Title  string `json:"title"`
	Icon   Icon   `json:"icon"`
	Items  []Item `json:"items"`
}

// Board is the whole priorities document, always read and written as one value.
type Board struct {
	Title    string    `json:"title"`
	Date     string    `json:"date"`
	Sections []Section `json:"sections"`
}

// Clone returns a deep copy.
func (b Board) Clone() Board {
	out := Board{Title: b.Title, Date: b.Date, Sections: make([]Section, len(b.Sections))}
	for i, s := range b.Sections {
		s.Items = append([]Item(nil), s.Items...)
		if s.Items == nil {
			s.Items = []Item{}
		}
		out.Sections[i] = s
	}
	return out
}

// Validate checks section columns, icons and id uniqueness.
func (b Board) Validate() error {
	ids := make(map[string]bool)
	for _, s := range b.Sections {
		if err := validateSection(s); err != nil {
			return err
		}
		if ids[s.ID] {
			return fmt.Errorf("section %q: %w", s.ID, ErrDuplicateID)
		}
		ids[s.ID] = true
		for _, it := range s.Items {
			if it.ID == "" {
				return fmt.Errorf("item in section %q: %w", s.ID, ErrMissingID)
			}
			if ids[it.ID] {
				return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateID)
			}
			ids[it.ID] = true
		}
	}
	return nil
}

func validateSection(s Section) error {
	if s.ID == "" {
		return fmt.Errorf("section: %w", ErrMissingID)
	}
	if s.Column < 1 {
		return fmt.Errorf("section %q: %w", s.ID, ErrInvalidColumn)
	}
	if err := s.Icon.Validate(); err != nil {
		return fmt.Errorf("section %q: %w", s.ID, err)
	}
	return nil
}

func (b Board) sectionIndex(id string) int {
	for i, s := range b.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (b Board) usesID(id string) bool {
	for _, s := range b.Sections {
		if s.ID == id {
			return true
		}
		for _, it := range s.Items {
			if it.ID == id {
				return true
			}
		}
	}
	return false
}

// SetTitle returns a copy with a new title.
func (b Board) SetTitle(title string) Board {
	out := b.Clone()
	out.Title = title
	return out
}

// SetDate returns a copy with a new date label.
func (b Board) SetDate(date string) Board {
	out := b.Clone()
	out.Date = date
	return out
}

// AddSection appends a section.
func (b Board) AddSection(s Section) (Board, error) {
	if err := validateSection(s); err != nil {
		return b, err
	}
	if b.usesID(s.ID) {
		return b, fmt.Errorf("section %q: %w", s.ID, ErrDuplicateID)
	}
	out := b.Clone()
	s.Items = append([]Item{}, s.Items...)
	out.Sections = append(out.Sections, s)
	return out, nil
}

// UpdateSection replaces a section's column, title and icon. Its items are kept.
func (b Board) UpdateSection(s Section) (Board, error) {
	if err := validateSection(s); err != nil {
		return b, err
	}
	i := b.sectionIndex(s.ID)
	if i < 0 {
		return b, fmt.Errorf("section %q: %w", s.ID, ErrSectionNotFound)
	}
	out := b.Clone()
	out.Sections[i].Column = s.Column
	out.Sections[i].Title = s.Title
	out.Sections[i].Icon = s.Icon
	return out, nil
}

// RemoveSection drops a section together with all of its items.
func (b Board) RemoveSection(id string) (Board, error) {
	i := b.sectionIndex(id)
	if i < 0 {
		return b, fmt.Errorf("section %q: %w", id, ErrSectionNotFound)
	}
	out := b.Clone()
	out.Sections = append(out.Sections[:i], out.Sections[i+1:]...)
	return out, nil
}

// AddItem appends an item to the end of a section.
func (b Board) AddItem(sectionID string, it Item) (Board, error) {
	if it.ID == "" {
		return b, fmt.Errorf("item: %w", ErrMissingID)
	}
	i := b.sectionIndex(sectionID)
	if i < 0 {
		return b, fmt.Errorf("section %q: %w", sectionID, ErrSectionNotFound)
	}
	if b.usesID(it.ID) {
		return b, fmt.Errorf("item %q: %w", it.ID, ErrDuplicateID)
	}
	out := b.Clone()
	out.Sections[i].Items = append(out.Sections[i].Items, it)
	return out, nil
}

// UpdateItem replaces an item in place, keeping its position.
func (b Board) UpdateItem(it Item) (Board, error) {
	for si, s := range b.Sections {
		for ii, existing := range s.Items {
			if existing.ID == it.ID {
				out := b.Clone()
				out.Sections[si].Items[ii] = it
				return out, nil
			}
		}
	}
	return b, fmt.Errorf("item %q: %w", it.ID, ErrItemNotFound)
}

// UpsertItem updates the item if present anywhere on the board, otherwise
// appends it to sectionID.
func (b Board) UpsertItem(sectionID string, it Item) (Board, error) {
	if _, _, ok := b.FindItem(it.ID); ok {
		return b.UpdateItem(it)
	}
	return b.AddItem(sectionID, it)
}

// RemoveItem deletes an item wherever it is.
func (b Board) RemoveItem(id string) (Board, error) {
	for si, s := range b.Sections {
		for ii, existing := range s.Items {
			if existing.ID == id {
				out := b.Clone()
				items := out.Sections[si].Items
				out.Sections[si].Items = append(items[:ii], items[ii+1:]...)
				return out, nil
			}
		}
	}
	return b, fmt.Errorf("item %q: %w", id, ErrItemNotFound)
}

// FindItem returns an item and the id of its section.
func (b Board) FindItem(id string) (Item, string, bool) {
	for _, s := range b.Sections {
		for _, it := range s.Items {
			if it.ID == id {
				return it, s.ID, true
			}
		}
	}
	return Item{}, "", false
}

// Column is one visual lane of sections.
type Column struct {
	Index    int       `json:"index"`
	Sections []Section `json:"sections"`
}

// Columns groups sections into lanes ordered by column index. Sections
// keep their board order within a lane.
func (b Board) Columns() []Column {
	byIndex := make(map[int][]Section)
	for _, s := range b.Sections {
		byIndex[s.Column] = append(byIndex[s.Column], s)
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	cols := make([]Column, 0, len(indexes))
	for _, idx := range indexes {
		cols = append(cols, Column{Index: idx, Sections: byIndex[idx]})
	}
	return cols
}

// Defaults returns the board written when the store has none yet.
func Defaults() Board {
	return Board{
		Title: "Plant Priorities",
		Date:  "",
		Sections: []Section{
			{ID: "safety", Column: 1, Title: "Safety", Icon: IconShield, Items: []Item{
				{ID: "safety-1", Text: "Days without lost-time incident", Value: 42, Target: 100, Unit: "days", HasKPI: true},
				{ID: "safety-2", Text: "Close open permit-to-work audits", Unit: ""},
			}},
			{ID: "production", Column: 1, Title: "Production", Icon: IconFactory, Items: []Item{
				{ID: "production-1", Text: "Kiln feed rate", Value: 380, Target: 400, Unit: "t/h", HasKPI: true},
				{ID: "production-2", Text: "Cement mill throughput", Value: 145, Target: 150, Unit: "t/h", HasKPI: true},
			}},
			{ID: "maintenance", Column: 2, Title: "Maintenance", Icon: IconWrench, Items: []Item{
				{ID: "maintenance-1", Text: "MTBF kiln", Value: 320, Target: 400, Unit: "hrs", HasKPI: true},
				{ID: "maintenance-2", Text: "Replace raw mill separator bearings", Unit: ""},
			}},
			{ID: "quality", Column: 2, Title: "Quality", Icon: IconCheck, Items: []Item{
				{ID: "quality-1", Text: "Clinker free lime below 1.5%", Value: 1.2, Target: 1.5, Unit: "%", HasKPI: true},
			}},
		},
	}
}
