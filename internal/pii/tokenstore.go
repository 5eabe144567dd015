package pii

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Default lifetime of tokenize-mode mappings.
const (
	DefaultTokenTTL     = 15 * time.Minute
	defaultTokenCleanup = 30 * time.Minute
)

// CacheTokenStore is a session-scoped TokenStore whose entries expire.
type CacheTokenStore struct {
	c *cache.Cache
}

// NewCacheTokenStore creates an empty store. A ttl of zero uses
// DefaultTokenTTL.
func NewCacheTokenStore(ttl time.Duration) *CacheTokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &CacheTokenStore{c: cache.New(ttl, defaultTokenCleanup)}
}

// Put records the original value behind token.
func (s *CacheTokenStore) Put(token, original string) {
	s.c.SetDefault(token, original)
}

// Resolve returns the original value for token, if it has not expired.
func (s *CacheTokenStore) Resolve(token string) (string, bool) {
	v, ok := s.c.Get(token)
	if !ok {
		return "", false
	}
	original, ok := v.(string)
	return original, ok
}

// Len reports the number of live tokens.
func (s *CacheTokenStore) Len() int {
	return s.c.ItemCount()
}
