package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssigned(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Attribute 'GPUCurrentFanSpeed' (host:0[fan:0]) assigned value 70.", 70},
		{"\n  Attribute 'GPUCurrentFanSpeed' (host:0[fan:0]) assigned value 80.\n\n", 80},
		{"assigned value 100", 100},
	}

	for _, tt := range tests {
		got, err := parseAssigned(tt.text)
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.want, got)
	}

	_, err := parseAssigned("assigned value seventy.")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	manual, err := parseMode(" 1\n")
	require.NoError(t, err)
	assert.True(t, manual)

	manual, err = parseMode("0")
	require.NoError(t, err)
	assert.False(t, manual)

	_, err = parseMode("")
	assert.Error(t, err)
}
