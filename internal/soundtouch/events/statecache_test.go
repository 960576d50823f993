package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

func TestStateCache_UpdateAndGet(t *testing.T) {
	cache := NewStateCache(0)
	var listener soundtouch.Listener = cache

	listener.UpdateProperty("A1", soundtouch.PropertyVolume, 30)
	listener.UpdateProperty("A1", soundtouch.PropertyMute, true)
	listener.UpdateProperty("A1", soundtouch.PropertyVolume, 35)

	state := cache.Get("A1")
	require.NotNil(t, state)
	require.Equal(t, 35, state.Properties[soundtouch.PropertyVolume])
	require.Equal(t, true, state.Properties[soundtouch.PropertyMute])

	state.Properties[soundtouch.PropertyVolume] = 99
	value, ok := cache.Value("A1", soundtouch.PropertyVolume)
	require.True(t, ok)
	require.Equal(t, 35, value)

	_, ok = cache.Value("A1", soundtouch.PropertyBass)
	require.False(t, ok)
	require.Nil(t, cache.Get("B2"))

	hits, misses, size := cache.Stats()
	require.Equal(t, int64(2), hits)
	require.Equal(t, int64(2), misses)
	require.Equal(t, 1, size)
}

func TestStateCache_StaleEntries(t *testing.T) {
	cache := NewStateCache(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.UpdateProperty("A1", soundtouch.PropertyPower, true)
	cache.UpdateProperty("B2", soundtouch.PropertyPower, false)
	require.NotNil(t, cache.Get("A1"))

	now = now.Add(30 * time.Second)
	cache.UpdateProperty("B2", soundtouch.PropertyPower, true)
	now = now.Add(45 * time.Second)

	require.Nil(t, cache.Get("A1"))
	require.NotNil(t, cache.Get("B2"))
	require.Equal(t, 1, cache.Prune())
	require.Len(t, cache.List(), 1)
}

func TestStateCache_ListAndRemove(t *testing.T) {
	cache := NewStateCache(0)
	cache.UpdateProperty("C3", soundtouch.PropertyZoneInfo, "Standalone")
	cache.UpdateProperty("A1", soundtouch.PropertyZoneInfo, "Standalone")

	list := cache.List()
	require.Len(t, list, 2)
	require.Equal(t, "A1", list[0].DeviceID)
	require.Equal(t, "C3", list[1].DeviceID)

	cache.Remove("A1")
	require.Nil(t, cache.Get("A1"))
	require.Len(t, cache.List(), 1)
}
