package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelSatisfies(t *testing.T) {
	tests := []struct {
		granted  Level
		required Level
		want     bool
	}{
		{LevelView, LevelView, true},
		{LevelView, LevelRead, false},
		{LevelView, LevelControl, false},
		{LevelRead, LevelView, true},
		{LevelRead, LevelRead, true},
		{LevelRead, LevelWrite, false},
		{LevelWrite, LevelRead, true},
		{LevelWrite, LevelControl, false},
		{LevelControl, LevelView, true},
		{LevelControl, LevelRead, true},
		{LevelControl, LevelWrite, true},
		{LevelControl, LevelControl, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.granted.Satisfies(tt.required),
			"%s satisfies %s", tt.granted, tt.required)
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"view", "read", "write", "control"} {
		level, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, level.String())
	}

	_, err := ParseLevel("root")
	assert.Error(t, err)

	_, err = ParseLevel("")
	assert.Error(t, err)
}
