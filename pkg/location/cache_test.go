package location

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	next  LocationExtractor
	calls atomic.Int32
}

func (c *countingExtractor) Extract(caption string) *Location {
	c.calls.Add(1)
	return c.next.Extract(caption)
}

func TestCachedExtractorMatchesPlain(t *testing.T) {
	plain := newExtractor(t)
	cached := NewCached(plain, time.Minute)

	captions := []string{
		"Bolivia • La Paz",
		"Japan・Hokkaido",
		"Peru \n秘魯",
		"Kapailai is beautiful",
		"這的理由還是沒有留在這的理由",
		"",
	}
	for _, c := range captions {
		assert.Equal(t, plain.Extract(c), cached.Extract(c), "first call %q", c)
		assert.Equal(t, plain.Extract(c), cached.Extract(c), "cached call %q", c)
	}
}

func TestCachedExtractorMemoizes(t *testing.T) {
	counter := &countingExtractor{next: newExtractor(t)}
	cached := NewCached(counter, 0)

	for i := 0; i < 5; i++ {
		require.NotNil(t, cached.Extract("Holland • Amsterdam"))
		assert.Nil(t, cached.Extract("no place at all"))
	}

	assert.Equal(t, int32(2), counter.calls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedExtractorReturnsCopies(t *testing.T) {
	cached := NewCached(newExtractor(t), time.Minute)

	first := cached.Extract("Japan • Tokyo")
	require.NotNil(t, first)
	first.City = "mutated"
	first.CountryCoordinates.Lat = 0

	second := cached.Extract("Japan • Tokyo")
	assert.Equal(t, "Tokyo", second.City)
	assert.Equal(t, 36.2048, second.CountryCoordinates.Lat)
}
