// Package kpi defines the KPI record shown on plant status cards.
package kpi

import (
	"fmt"
	"math"
	"strings"
)

// Path is the store root holding every KPI, keyed by id.
const Path = "kpis"

// KPI is a single key-performance indicator. The id is the store path
// segment and is never part of the stored value.
type KPI struct {
	ID     string  `json:"-"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
}

// Progress returns the KPI's completion percentage, see Progress.
func (k KPI) Progress() float64 {
	return Progress(k.Value, k.Target)
}

// Card is the shape KPIs take outside the store: the stored fields plus
// the id and the derived progress.
type Card struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Target   float64 `json:"target"`
	Unit     string  `json:"unit"`
	Progress float64 `json:"progress"`
}

// Card returns the KPI with its id and progress filled in.
func (k KPI) Card() Card {
	return Card{
		ID:       k.ID,
		Name:     k.Name,
		Value:    k.Value,
		Target:   k.Target,
		Unit:     k.Unit,
		Progress: k.Progress(),
	}
}

// Validate rejects values that cannot be stored as JSON numbers.
func (k KPI) Validate() error {
	if math.IsNaN(k.Value) || math.IsInf(k.Value, 0) {
		return fmt.Errorf("kpi %q: value must be a finite number", k.Name)
	}
	if math.IsNaN(k.Target) || math.IsInf(k.Target, 0) {
		return fmt.Errorf("kpi %q: target must be a finite number", k.Name)
	}
	return nil
}

// Progress returns value as a percentage of target, clamped to [0, 100].
// A zero target yields 0.
func Progress(value, target float64) float64 {
	if target == 0 {
		return 0
	}
	p := value / target * 100
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(math.Max(p, 0), 100)
}

// NewDraft returns the values a freshly added KPI starts with.
func NewDraft() KPI {
	return KPI{Name: "New KPI", Value: 0, Target: 100, Unit: "unit"}
}

// Defaults returns the records written when the store has no KPIs yet.
func Defaults() []KPI {
	return []KPI{
		{ID: "1", Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"},
		{ID: "2", Name: "Cement Feed", Value: 145, Target: 150, Unit: "t/h"},
		{ID: "3", Name: "MTBF Kiln", Value: 320, Target: 400, Unit: "hrs"},
		{ID: "4", Name: "MTBF Cement", Value: 280, Target: 300, Unit: "hrs"},
	}
}

// Seed returns Defaults keyed by id, ready for a whole-root write.
func Seed() map[string]KPI {
	seed := make(map[string]KPI)
	for _, k := range Defaults() {
		seed[k.ID] = k
	}
	return seed
}

// Shape tells the replica how to address and order KPIs: by id, sorted by
// name with the id breaking ties so the order is total.
type Shape struct{}

func (Shape) ID(k KPI) string { return k.ID }

func (Shape) WithID(k KPI, id string) KPI {
	k.ID = id
	return k
}

func (Shape) Less(a, b KPI) bool {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
