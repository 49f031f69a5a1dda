// Package cache puts a bounded LRU in front of draft reads.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
)

// DefaultSize is used when no size is configured.
const DefaultSize = 256

// Drafts wraps a storage.Store and caches GetDraft by id. Writes go
// through to the backing store and then refresh the entry.
type Drafts struct {
	storage.Store
	drafts *lru.Cache[int64, model.Draft]
}

// NewDrafts wraps store with a cache of the given size.
func NewDrafts(store storage.Store, size int) (*Drafts, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[int64, model.Draft](size)
	if err != nil {
		return nil, fmt.Errorf("create draft cache: %w", err)
	}
	return &Drafts{Store: store, drafts: c}, nil
}

func (d *Drafts) InsertDraft(ctx context.Context, draft *model.Draft) error {
	if err := d.Store.InsertDraft(ctx, draft); err != nil {
		return err
	}
	d.drafts.Add(draft.ID, *draft)
	return nil
}

func (d *Drafts) UpdateDraft(ctx context.Context, draft *model.Draft) error {
	if err := d.Store.UpdateDraft(ctx, draft); err != nil {
		d.drafts.Remove(draft.ID)
		return err
	}
	d.drafts.Add(draft.ID, *draft)
	return nil
}

func (d *Drafts) GetDraft(ctx context.Context, id int64) (model.Draft, error) {
	if draft, ok := d.drafts.Get(id); ok {
		return draft, nil
	}
	draft, err := d.Store.GetDraft(ctx, id)
	if err != nil {
		return model.Draft{}, err
	}
	d.drafts.Add(id, draft)
	return draft, nil
}

// Len reports the number of cached drafts.
func (d *Drafts) Len() int { return d.drafts.Len() }
