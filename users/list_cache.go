package users

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultListTTL bounds how stale a cached pending list may get.
const DefaultListTTL = 2 * time.Minute

// ListCache keeps each administrator's pending list between requests so
// optimistic removals survive until the list is fetched again.
type ListCache struct {
	lists *cache.Cache // admin session id -> *PendingList
}

func NewListCache(ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &ListCache{lists: cache.New(ttl, 2*ttl)}
}

func (c *ListCache) Get(key string) (*PendingList, bool) {
	v, ok := c.lists.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*PendingList), true
}

func (c *ListCache) Put(key string, list *PendingList) {
	c.lists.SetDefault(key, list)
}

func (c *ListCache) Invalidate(key string) {
	c.lists.Delete(key)
}
