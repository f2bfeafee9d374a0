package ssh

import (
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

type cachedStatus struct {
	result   workflow.ProbeResult
	probedAt time.Time
}

// StatusCache 最近一次探测结果，ttl<=0 表示不过期
type StatusCache struct {
	mu    sync.RWMutex
	items map[string]cachedStatus
	ttl   time.Duration
	clk   clock.Clock
}

func NewStatusCache(ttl time.Duration, clk clock.Clock) *StatusCache {
	if clk == nil {
		clk = clock.WallClock
	}
	return &StatusCache{
		items: make(map[string]cachedStatus),
		ttl:   ttl,
		clk:   clk,
	}
}

func (sc *StatusCache) Get(key string) (workflow.ProbeResult, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	it, ok := sc.items[key]
	if !ok {
		return workflow.ProbeResult{}, false
	}
	if sc.ttl > 0 && sc.clk.Now().Sub(it.probedAt) > sc.ttl {
		return workflow.ProbeResult{}, false
	}
	return it.result, true
}

func (sc *StatusCache) Set(key string, r workflow.ProbeResult) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.items[key] = cachedStatus{result: r, probedAt: sc.clk.Now()}
}

// Purge 清掉已过期的条目
func (sc *StatusCache) Purge() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.ttl <= 0 {
		return 0
	}
	n := 0
	now := sc.clk.Now()
	for k, it := range sc.items {
		if now.Sub(it.probedAt) > sc.ttl {
			delete(sc.items, k)
			n++
		}
	}
	return n
}

func (sc *StatusCache) Len() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.items)
}
