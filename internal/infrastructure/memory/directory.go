package memory

import (
	"context"
	"sync"
)

// Directory is a static in-process set of known ids. It backs the
// CategoryDirectory and UserDirectory collaborators when no database is
// configured. An open directory accepts any non-empty id.
type Directory struct {
	mu   sync.RWMutex
	ids  map[string]struct{}
	open bool
}

func NewDirectory(ids ...string) *Directory {
	d := &Directory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		d.ids[id] = struct{}{}
	}
	return d
}

func NewOpenDirectory() *Directory {
	return &Directory{ids: make(map[string]struct{}), open: true}
}

func (d *Directory) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

func (d *Directory) contains(id string) bool {
	if id == "" {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.open {
		return true
	}
	_, ok := d.ids[id]
	return ok
}

func (d *Directory) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	return d.contains(categoryID), nil
}

func (d *Directory) IsValidUser(ctx context.Context, userID string) (bool, error) {
	return d.contains(userID), nil
}
