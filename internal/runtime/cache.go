package runtime

import (
	"sync"

	"github.com/cjsstech/changi-dr-agent/internal/compiler"
)

// graphCache holds compiled graphs keyed by workflow id. It is owned by the
// Executor (never a package-level singleton) and shared across concurrent
// requests, so every access goes through the lock. Redundant concurrent
// compiles for the same id are tolerated: last writer wins.
type graphCache struct {
	mu     sync.RWMutex
	graphs map[string]*compiler.Graph
}

func newGraphCache() *graphCache {
	return &graphCache{graphs: make(map[string]*compiler.Graph)}
}

func (c *graphCache) get(id string) (*compiler.Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[id]
	return g, ok
}

func (c *graphCache) put(id string, g *compiler.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[id] = g
}

func (c *graphCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, id)
}

// runnerCache holds per-agent tool-loop runners, invalidated whenever the
// agent definition changes. Same locking discipline as graphCache.
type runnerCache struct {
	mu      sync.RWMutex
	runners map[string]*AgentRunner
}

func newRunnerCache() *runnerCache {
	return &runnerCache{runners: make(map[string]*AgentRunner)}
}

func (c *runnerCache) get(id string) (*AgentRunner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runners[id]
	return r, ok
}

func (c *runnerCache) put(id string, r *AgentRunner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[id] = r
}

func (c *runnerCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runners, id)
}
