// Package trending scores region popularity with exponentially decayed
// click counts.
package trending

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const numShards = 16

// Tracker accumulates one decayed score per region name. Safe for
// concurrent use.
type Tracker struct {
	halfLife time.Duration

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*counter
}

type counter struct {
	score float64
	last  time.Time
}

type RegionScore struct {
	Region string  `json:"region"`
	Score  float64 `json:"score"`
}

func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = 30 * time.Minute
	}
	t := &Tracker{halfLife: halfLife, now: time.Now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*counter)
	}
	return t
}

// Inc records one selection of region.
func (t *Tracker) Inc(region string) {
	if region == "" {
		return
	}
	s := t.pick(region)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.m[region]
	if c == nil {
		s.m[region] = &counter{score: 1, last: n}
		return
	}
	c.score = c.score*decayFactor(n.Sub(c.last), t.halfLife) + 1
	c.last = n
}

// Score returns the region's decayed score as of now.
func (t *Tracker) Score(region string) float64 {
	s := t.pick(region)
	n := t.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.m[region]
	if c == nil {
		return 0
	}
	return c.score * decayFactor(n.Sub(c.last), t.halfLife)
}

// Top returns up to n regions ordered by decayed score, highest first.
func (t *Tracker) Top(n int) []RegionScore {
	if n <= 0 {
		return nil
	}
	now := t.now()

	var out []RegionScore
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for region, c := range s.m {
			score := c.score * decayFactor(now.Sub(c.last), t.halfLife)
			if score > 0 {
				out = append(out, RegionScore{Region: region, Score: score})
			}
		}
		s.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Region < out[j].Region
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Reset drops the named regions, or everything when none are named.
func (t *Tracker) Reset(regions ...string) {
	if len(regions) == 0 {
		for i := range t.shards {
			s := &t.shards[i]
			s.mu.Lock()
			s.m = make(map[string]*counter)
			s.mu.Unlock()
		}
		return
	}
	for _, region := range regions {
		s := t.pick(region)
		s.mu.Lock()
		delete(s.m, region)
		s.mu.Unlock()
	}
}

func (t *Tracker) pick(region string) *shard {
	return &t.shards[xxhash.Sum64String(region)%numShards]
}

func decayFactor(dt, halfLife time.Duration) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * dt.Seconds() / halfLife.Seconds())
}
