package service

import (
	"context"

	"realtime-chat/backend/pkg/cache"
)

// CachedDirectory remembers display names so rendering history does not hit
// the users table for every page load. Users cannot rename themselves, so the
// TTL only bounds memory for accounts that stop chatting.
type CachedDirectory struct {
	next  DisplayNameDirectory
	names *cache.Cache[uint, string]
}

// NewCachedDirectory wraps next with the given cache
func NewCachedDirectory(next DisplayNameDirectory, names *cache.Cache[uint, string]) *CachedDirectory {
	return &CachedDirectory{next: next, names: names}
}

// DisplayNames serves what it can from the cache and asks next for the rest
func (d *CachedDirectory) DisplayNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	var missing []uint
	for _, id := range ids {
		if name, ok := d.names.Get(id); ok {
			names[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	loaded, err := d.next.DisplayNames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range loaded {
		d.names.Set(id, name)
		names[id] = name
	}
	return names, nil
}
