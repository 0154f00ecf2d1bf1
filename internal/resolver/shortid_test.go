package resolver

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveID(t *testing.T) {
	ids := []string{"1", "2", "01HZXK3N8QJ5Y2T7V9W0X1Y2Z3", "01HZXK3N9A0000000000000000", "01J0000000000000000000000A"}

	tests := []struct {
		name    string
		input   string
		want    string
		errFunc func(error) bool
		errText string
	}{
		{name: "exact short id", input: "1", want: "1"},
		{name: "exact full id", input: "01HZXK3N8QJ5Y2T7V9W0X1Y2Z3", want: "01HZXK3N8QJ5Y2T7V9W0X1Y2Z3"},
		{name: "unique prefix", input: "01J000", want: "01J0000000000000000000000A"},
		{name: "longer unique prefix", input: "01HZXK3N8", want: "01HZXK3N8QJ5Y2T7V9W0X1Y2Z3"},
		{name: "ambiguous prefix", input: "01HZXK", errFunc: IsAmbiguousError},
		{name: "no match", input: "ZZZZZZ", errFunc: IsNotFoundError},
		{name: "short unknown id", input: "9", errFunc: IsNotFoundError},
		{name: "short prefix with matches", input: "01H", errText: "at least 6 characters"},
		{name: "empty", input: "", errText: "cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveID(ids, tt.input)
			if tt.errFunc == nil && tt.errText == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			if tt.errFunc != nil {
				assert.True(t, tt.errFunc(err), "unexpected error type: %v", err)
			}
			if tt.errText != "" {
				assert.Contains(t, err.Error(), tt.errText)
			}
		})
	}
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = fmt.Sprintf("01HZXK%020d", i)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "01HZXK", Matches: matches})
	assert.Contains(t, msg, "matches 12 records")
	assert.Contains(t, msg, "...and 2 more")
	assert.Equal(t, 10, strings.Count(msg, "  01HZXK"))
}
