package rasterio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelTypes(t *testing.T) {
	tests := []struct {
		pt      PixelType
		size    int
		integer bool
	}{
		{Byte, 1, true},
		{Int16, 2, true},
		{UInt32, 4, true},
		{UInt64, 8, true},
		{Float32, 4, false},
		{Float64, 8, false},
		{Unknown, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			assert.Equal(t, tt.size, tt.pt.Size())
			assert.Equal(t, tt.integer, tt.pt.IsInteger())
			assert.Equal(t, tt.pt != Unknown, tt.pt.Valid())
		})
	}

	pt, err := ParsePixelType("float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, pt)
	_, err = ParsePixelType("complex64")
	assert.ErrorIs(t, err, ErrUnsupportedPixelType)
}
