package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_GetSet(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("payload")
	require.NoError(t, c.Set(ctx, "k", value, time.Hour))
	value[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got), "stored value must not alias the caller's slice")

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(2 * time.Minute)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryClient_Bounded(t *testing.T) {
	c := NewMemoryClient(3)
	defer c.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("b"), time.Hour))
	require.NoError(t, c.Set(ctx, "c", []byte("c"), 2*time.Hour))
	require.NoError(t, c.Set(ctx, "d", []byte("d"), 3*time.Hour))

	assert.Equal(t, 3, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss, "soonest-expiring entry is evicted first")

	require.NoError(t, c.Set(ctx, "d", []byte("d2"), 3*time.Hour))
	assert.Equal(t, 3, c.Len(), "overwriting a key does not evict")
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"extract:1", "extract:2", "other:1"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), time.Hour))
	}
	require.NoError(t, c.DeleteByPrefix(ctx, "extract:"))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryClient_Concurrent(t *testing.T) {
	c := NewMemoryClient(50)
	defer c.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, []byte(key), time.Hour)
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}

func TestMemoryClient_CloseIdempotent(t *testing.T) {
	c := NewMemoryClient(1)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestExtractionKey(t *testing.T) {
	img := []byte("image bytes")
	models := []string{"gemini-2.0-flash", "gemini-2.5-flash"}

	k := ExtractionKey(img, "gemini", models, "prompt")
	parts := strings.Split(k, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "extract", parts[0])
	assert.Len(t, parts[1], 64)
	assert.Len(t, parts[2], 64)

	assert.Equal(t, k, ExtractionKey(img, "gemini", models, "prompt"))
	assert.NotEqual(t, k, ExtractionKey([]byte("other"), "gemini", models, "prompt"))
	assert.NotEqual(t, k, ExtractionKey(img, "openrouter", models, "prompt"))
	assert.NotEqual(t, k, ExtractionKey(img, "gemini", models[:1], "prompt"))
	assert.NotEqual(t, k, ExtractionKey(img, "gemini", models, "prompt v2"))
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	type payload struct {
		Model  string         `json:"model"`
		Fields map[string]any `json:"fields"`
	}
	in := payload{Model: "m", Fields: map[string]any{"outer_width": 150.0}}
	require.NoError(t, SetJSON(ctx, c, "p", in, time.Hour))

	var out payload
	require.NoError(t, GetJSON(ctx, c, "p", &out))
	assert.Equal(t, in, out)

	require.NoError(t, c.Set(ctx, "bad", []byte("{"), time.Hour))
	assert.Error(t, GetJSON(ctx, c, "bad", &out))
	assert.ErrorIs(t, GetJSON(ctx, c, "none", &out), ErrCacheMiss)
}

func TestNew(t *testing.T) {
	c, err := New(Settings{Driver: "memory", MaxEntries: 5})
	require.NoError(t, err)
	assert.IsType(t, &MemoryClient{}, c)
	c.Close()

	c, err = New(Settings{Driver: "none"})
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = New(Settings{Driver: "memcached"})
	assert.Error(t, err)
}
