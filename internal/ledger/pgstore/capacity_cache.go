package pgstore

import (
	"encoding/json"

	"github.com/2beens/wodcareer/internal/ledger"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	capacitiesCacheKey    = "physical_capacities"
	capacitiesCacheExpire = 300 // seconds
)

// capacityCache keeps the capacity catalog between transactions. The
// catalog only changes when it is seeded, which clears the cache.
type capacityCache struct {
	cache *freecache.Cache
}

func newCapacityCache(size int) *capacityCache {
	return &capacityCache{
		cache: freecache.NewCache(size),
	}
}

func (c *capacityCache) get() ([]ledger.Capacity, bool) {
	cached, err := c.cache.Get([]byte(capacitiesCacheKey))
	if err != nil {
		return nil, false
	}
	var capacities []ledger.Capacity
	if err := json.Unmarshal(cached, &capacities); err != nil {
		log.Errorf("unmarshal cached capacities: %s", err)
		return nil, false
	}
	return capacities, true
}

func (c *capacityCache) set(capacities []ledger.Capacity) {
	b, err := json.Marshal(capacities)
	if err != nil {
		log.Errorf("marshal capacities for cache: %s", err)
		return
	}
	if err := c.cache.Set([]byte(capacitiesCacheKey), b, capacitiesCacheExpire); err != nil {
		log.Errorf("cache capacities: %s", err)
	}
}

func (c *capacityCache) clear() {
	c.cache.Clear()
}
