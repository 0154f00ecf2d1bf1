package kpi

import (
	"encoding/json"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		target float64
		want   float64
	}{
		{name: "below target", value: 380, target: 400, want: 95},
		{name: "above target clamps to 100", value: 500, target: 400, want: 100},
		{name: "zero target is zero", value: 10, target: 0, want: 0},
		{name: "negative value clamps to 0", value: -5, target: 100, want: 0},
		{name: "negative target clamps to 0", value: 5, target: -100, want: 0},
		{name: "both zero", value: 0, target: 0, want: 0},
		{name: "infinite over infinite", value: math.Inf(1), target: math.Inf(1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Progress(tt.value, tt.target)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 100.0)
		})
	}
}

func TestShapeOrdersByName(t *testing.T) {
	records := []KPI{
		{ID: "x", Name: "B"},
		{ID: "y", Name: "A"},
		{ID: "z", Name: "C"},
	}
	s := Shape{}
	sort.Slice(records, func(i, j int) bool { return s.Less(records[i], records[j]) })

	names := []string{records[0].Name, records[1].Name, records[2].Name}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestShapeBreaksTiesByID(t *testing.T) {
	s := Shape{}
	a := KPI{ID: "1", Name: "Same"}
	b := KPI{ID: "2", Name: "Same"}
	assert.True(t, s.Less(a, b))
	assert.False(t, s.Less(b, a))
}

func TestIDIsNotStored(t *testing.T) {
	data, err := json.Marshal(KPI{ID: "1", Name: "Kiln Feed", Value: 380, Target: 400, Unit: "t/h"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Kiln Feed","value":380,"target":400,"unit":"t/h"}`, string(data))
}

func TestSeed(t *testing.T) {
	seed := Seed()
	require.Len(t, seed, 4)
	assert.Equal(t, "Kiln Feed", seed["1"].Name)
	assert.Equal(t, "MTBF Cement", seed["4"].Name)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewDraft().Validate())
	assert.Error(t, KPI{Name: "bad", Value: math.NaN()}.Validate())
	assert.Error(t, KPI{Name: "bad", Target: math.Inf(-1)}.Validate())
}

func TestCard(t *testing.T) {
	card := KPI{ID: "7", Name: "Kiln Feed", Value: 500, Target: 400, Unit: "t/h"}.Card()
	assert.Equal(t, Card{ID: "7", Name: "Kiln Feed", Value: 500, Target: 400, Unit: "t/h", Progress: 100}, card)
}
