package api

import (
	"sync"
	"time"

	"github.com/testforge/smartfill/internal/domain"
)

// DefaultCooldown is the minimum spacing between analyses of one page.
const DefaultCooldown = 2 * time.Second

// sweepThreshold bounds the page table before idle entries are dropped.
const sweepThreshold = 1024

type pageState struct {
	inFlight bool
	started  time.Time
}

// PageGuard allows one analysis per page context at a time and spaces
// analyses by a cooldown measured from the start of the previous one.
// Rejected attempts are not queued.
type PageGuard struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	pages    map[string]*pageState
}

// NewPageGuard creates a guard. A non-positive cooldown uses DefaultCooldown.
func NewPageGuard(cooldown time.Duration) *PageGuard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &PageGuard{cooldown: cooldown, now: time.Now, pages: make(map[string]*pageState)}
}

// Acquire claims pageID. The returned release must be called when the
// analysis finishes.
func (g *PageGuard) Acquire(pageID string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st, ok := g.pages[pageID]
	if ok {
		if st.inFlight {
			return nil, domain.ErrAnalysisInProgress()
		}
		if elapsed := now.Sub(st.started); elapsed < g.cooldown {
			return nil, domain.ErrAnalysisCooldown(g.cooldown - elapsed)
		}
	} else {
		if len(g.pages) >= sweepThreshold {
			g.sweep(now)
		}
		st = &pageState{}
		g.pages[pageID] = st
	}

	st.inFlight = true
	st.started = now

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			st.inFlight = false
			g.mu.Unlock()
		})
	}, nil
}

// sweep drops pages that are idle and out of cooldown. Callers hold mu.
func (g *PageGuard) sweep(now time.Time) {
	for id, st := range g.pages {
		if !st.inFlight && now.Sub(st.started) >= g.cooldown {
			delete(g.pages, id)
		}
	}
}
