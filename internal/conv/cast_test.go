//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntToInt32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToInt32(0)
		assert.NoError(t, err)
		assert.Equal(t, int32(0), got)
	})

	t.Run("valid negative", func(t *testing.T) {
		got, err := IntToInt32(-42)
		assert.NoError(t, err)
		assert.Equal(t, int32(-42), got)
	})

	t.Run("invalid too large", func(t *testing.T) {
		_, err := IntToInt32(math.MaxInt32 + 1)
		assert.Error(t, err)
	})

	t.Run("invalid too small", func(t *testing.T) {
		_, err := IntToInt32(math.MinInt32 - 1)
		assert.Error(t, err)
	})
}

func TestLenToInt32(t *testing.T) {
	got, err := LenToInt32(1024)
	assert.NoError(t, err)
	assert.Equal(t, int32(1024), got)

	_, err = LenToInt32(-1)
	assert.Error(t, err)
}

func TestInt32ToLen(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := Int32ToLen(7, 0)
		assert.NoError(t, err)
		assert.Equal(t, 7, got)
	})

	t.Run("negative", func(t *testing.T) {
		_, err := Int32ToLen(-1, 0)
		assert.Error(t, err)
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := Int32ToLen(11, 10)
		assert.Error(t, err)
	})
}

func TestIntToUint32(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint32(0)
		assert.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint32(-1)
		assert.Error(t, err)
	})

	t.Run("valid max int32", func(t *testing.T) {
		got, err := IntToUint32(math.MaxInt32)
		assert.NoError(t, err)
		assert.Equal(t, uint32(math.MaxInt32), got)
	})
}

func TestUint32ToInt(t *testing.T) {
	got, err := Uint32ToInt(math.MaxUint32)
	assert.NoError(t, err)
	assert.Equal(t, int(math.MaxUint32), got)
}
