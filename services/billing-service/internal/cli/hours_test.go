package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{input: "360", expected: 360},
		{input: "0", expected: 0},
		{input: "1h30m", expected: 5400},
		{input: "6m1s", expected: 361},
		{input: "1500ms", expected: 1},
		{input: "-5", wantErr: true},
		{input: "-1m", wantErr: true},
		{input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSeconds(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHoursRound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	env := &testEnv{url: "http://127.0.0.1:0"}
	out, err := env.run(t, "hours", "round", "0", "1", "360", "361", "1h")
	require.NoError(t, err)

	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		rows = append(rows, strings.Fields(line))
	}
	assert.Equal(t, [][]string{
		{"INPUT", "SECONDS", "HOURS"},
		{"0", "0", "0.0"},
		{"1", "1", "0.1"},
		{"360", "360", "0.1"},
		{"361", "361", "0.2"},
		{"1h", "3600", "1.0"},
	}, rows)

	_, err = env.run(t, "hours", "round")
	assert.Error(t, err)
}
