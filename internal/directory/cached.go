package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedDirectory keeps resolved doctors and clinics for a TTL. Misses are not
// cached so newly seeded entries show up immediately.
type CachedDirectory struct {
	next  Directory
	cache *cache.Cache
}

func NewCachedDirectory(next Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedDirectory) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	key := fmt.Sprintf("doctor:%d", id)
	if v, ok := d.cache.Get(key); ok {
		doc := v.(Doctor)
		return &doc, nil
	}

	doc, err := d.next.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, *doc)
	return doc, nil
}

func (d *CachedDirectory) GetClinic(ctx context.Context, id int64) (*Clinic, error) {
	key := fmt.Sprintf("clinic:%d", id)
	if v, ok := d.cache.Get(key); ok {
		c := v.(Clinic)
		return &c, nil
	}

	c, err := d.next.GetClinic(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, *c)
	return c, nil
}

func (d *CachedDirectory) ListDoctors(ctx context.Context, f Filter) ([]Doctor, error) {
	return d.next.ListDoctors(ctx, f)
}

func (d *CachedDirectory) ListClinics(ctx context.Context, f Filter) ([]Clinic, error) {
	return d.next.ListClinics(ctx, f)
}
