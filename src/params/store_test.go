package params

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, prefix string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://"+mr.Addr(), prefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

// Both stores must behave the same through the interface
func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"redis": func(t *testing.T) Store {
			s, _ := newRedisStore(t, "test:")
			return s
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := build(t)

			_, ok, err := s.Get(ctx, "Missing")
			require.NoError(t, err)
			assert.False(t, ok)

			b, err := s.GetBool(ctx, "Missing")
			require.NoError(t, err)
			assert.False(t, b)

			n, err := s.GetInt(ctx, "Missing")
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			require.NoError(t, s.Put(ctx, "PreferredSchedule", "2"))
			n, err = s.GetInt(ctx, "PreferredSchedule")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, s.PutBool(ctx, "ManualUpdateInitiated", true))
			b, err = s.GetBool(ctx, "ManualUpdateInitiated")
			require.NoError(t, err)
			assert.True(t, b)

			require.NoError(t, s.Remove(ctx, "ManualUpdateInitiated"))
			_, ok, err = s.Get(ctx, "ManualUpdateInitiated")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "Broken", "abc"))
			_, err = s.GetInt(ctx, "Broken")
			assert.Error(t, err)
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{" On ", true},
		{"0", false},
		{"", false},
		{"nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseBool(tt.input))
		})
	}
}

func TestRedisStore_Prefix(t *testing.T) {
	s, mr := newRedisStore(t, "backup:")

	require.NoError(t, s.Put(context.Background(), "LastMapsUpdate", "May 1st, 2025"))
	got, err := mr.Get("backup:LastMapsUpdate")
	require.NoError(t, err)
	assert.Equal(t, "May 1st, 2025", got)
}

func TestRedisStore_PutNonBlocking(t *testing.T) {
	s, mr := newRedisStore(t, "")

	s.PutNonBlocking("LastMapsUpdate", "June 2nd, 2025")
	s.Flush()

	got, err := mr.Get("LastMapsUpdate")
	require.NoError(t, err)
	assert.Equal(t, "June 2nd, 2025", got)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	s := NewRedisStoreFromClient(client, "")
	mr.Close()

	_, _, err := s.Get(context.Background(), "Anything")
	assert.Error(t, err)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", "")
	assert.Error(t, err)
}
