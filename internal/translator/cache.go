package translator

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/biostack-engine/internal/domain"
)

// memoCache memoizes translation outputs by input hash. Translation is a
// pure function of (codes, sex, mapping version), so a hit can be returned
// as-is; cached values are shared and must never be mutated.
type memoCache struct {
	cache  *lru.Cache[string, *domain.TranslatedConstraints]
	hits   atomic.Int64
	misses atomic.Int64
}

// MemoStats reports memo cache effectiveness.
type MemoStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

func newMemoCache(size int) (*memoCache, error) {
	cache, err := lru.New[string, *domain.TranslatedConstraints](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation memo: %w", err)
	}
	return &memoCache{cache: cache}, nil
}

func (m *memoCache) get(inputHash string) (*domain.TranslatedConstraints, bool) {
	v, ok := m.cache.Get(inputHash)
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return v, ok
}

func (m *memoCache) add(inputHash string, v *domain.TranslatedConstraints) {
	m.cache.Add(inputHash, v)
}

func (m *memoCache) stats() MemoStats {
	return MemoStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.cache.Len(),
	}
}
