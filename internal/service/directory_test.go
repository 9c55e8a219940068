package service

import (
	"context"
	"testing"
	"time"

	"realtime-chat/backend/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	names map[uint]string
	asked [][]uint
}

func (d *countingDirectory) DisplayNames(_ context.Context, ids []uint) (map[uint]string, error) {
	d.asked = append(d.asked, ids)
	out := make(map[uint]string)
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func TestCachedDirectory(t *testing.T) {
	backend := &countingDirectory{names: map[uint]string{1: "alice", 2: "bob"}}
	dir := NewCachedDirectory(backend, cache.New[uint, string](cache.Options{TTL: time.Minute}))
	ctx := context.Background()

	names, err := dir.DisplayNames(ctx, []uint{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{1: "alice", 2: "bob"}, names)

	names, err = dir.DisplayNames(ctx, []uint{2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{2: "bob"}, names)

	names, err = dir.DisplayNames(ctx, []uint{1, 2})
	require.NoError(t, err)
	assert.Len(t, names, 2)

	// Only misses reach the backend; unknown ids are not cached.
	assert.Equal(t, [][]uint{{1, 2}, {3}}, backend.asked)
}
