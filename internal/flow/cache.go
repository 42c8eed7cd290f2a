package flow

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/metrics"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

// DefaultCacheSize is the number of derivations kept by NewCache(0).
const DefaultCacheSize = 128

// Cache memoizes Derive on the content of its inputs. Results are shared
// between callers and must be treated as read-only.
type Cache struct {
	entries *lru.Cache
}

// NewCache creates a Cache holding up to size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Derive returns the memoized result for the inputs, computing it on a miss.
func (c *Cache) Derive(series []telemetry.Sample, ch channels.Channel, loc *time.Location) Result {
	key := Key(series, ch, loc)
	if v, ok := c.entries.Get(key); ok {
		metrics.Derived(true)
		return v.(Result)
	}
	metrics.Derived(false)
	res := Derive(series, ch, loc)
	c.entries.Add(key, res)
	return res
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Key hashes every input that can change the output of Derive: the series,
// the flow-related channel fields and the location.
func Key(series []telemetry.Sample, ch channels.Channel, loc *time.Location) uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 64)

	buf = binary.LittleEndian.AppendUint64(buf, uint64(ch.ID))
	buf = appendBool(buf, ch.EnableFlowCalculation)
	buf = appendBool(buf, ch.EnableFiltering)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(ch.FilterWindowSize))
	if ch.Surface != nil {
		buf = appendBool(buf, true)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(*ch.Surface))
	} else {
		buf = appendBool(buf, false)
	}
	if loc != nil {
		buf = append(buf, loc.String()...)
	}
	buf = append(buf, 0)
	_, _ = h.Write(buf)

	for _, s := range series {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Date.UnixNano()))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(s.Value))
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}
