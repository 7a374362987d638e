package command

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rbright/vocalnav/internal/textnorm"
)

// Router owns the mounted descriptor lists and selects at most one command per utterance.
type Router struct {
	logger *slog.Logger

	mu     sync.RWMutex
	mounts map[string][]compiled
	order  []string
	// ordered is the flattened scan order, rebuilt on every registration change.
	ordered []compiled
}

// NewRouter constructs an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger: logger,
		mounts: make(map[string][]compiled),
	}
}

// DefaultMount is the mount key used by Replace.
const DefaultMount = "default"

// Replace swaps the default mount's descriptors.
func (r *Router) Replace(descriptors []Descriptor) {
	r.Register(DefaultMount, descriptors)
}

// Register replaces every descriptor owned by mount.
func (r *Router) Register(mount string, descriptors []Descriptor) {
	list := make([]compiled, 0, len(descriptors))
	for _, d := range descriptors {
		c := compile(d)
		if len(c.keywords) == 0 {
			continue
		}
		list = append(list, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[mount]; !exists {
		r.order = append(r.order, mount)
	}
	r.mounts[mount] = list
	r.rebuildLocked()
}

// Unregister drops every descriptor owned by mount.
func (r *Router) Unregister(mount string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[mount]; !exists {
		return
	}
	delete(r.mounts, mount)
	for i, name := range r.order {
		if name == mount {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
}

// Mounts returns the registered mount keys in first-registration order.
func (r *Router) Mounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Active returns the descriptors in scan order.
func (r *Router) Active() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.ordered))
	for _, c := range r.ordered {
		out = append(out, c.descriptor)
	}
	return out
}

// Keywords returns every normalized keyword currently mounted.
func (r *Router) Keywords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, c := range r.ordered {
		out = append(out, c.keywords...)
	}
	return out
}

// rebuildLocked flattens mounts and orders descriptors by longest keyword, descending.
func (r *Router) rebuildLocked() {
	flat := make([]compiled, 0)
	for _, mount := range r.order {
		flat = append(flat, r.mounts[mount]...)
	}
	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].longest > flat[j].longest
	})
	r.ordered = flat
}

// Match selects a descriptor without invoking its handler.
func (r *Router) Match(utterance string) Outcome {
	normalized := textnorm.Normalize(utterance)
	if normalized == "" {
		return NoMatch
	}

	r.mu.RLock()
	ordered := r.ordered
	r.mu.RUnlock()

	for _, c := range ordered {
		for _, keyword := range c.keywords {
			if normalized == keyword {
				return Outcome{Matched: true, Descriptor: c.descriptor, Keyword: keyword, Pass: PassExact, Utterance: normalized}
			}
		}
	}

	for _, c := range ordered {
		for _, keyword := range c.bySize {
			if strings.Contains(normalized, keyword) {
				return Outcome{Matched: true, Descriptor: c.descriptor, Keyword: keyword, Pass: PassSubstring, Utterance: normalized}
			}
		}
	}

	return NoMatch
}

// Route matches utterance and invokes the winning handler.
func (r *Router) Route(utterance string) Outcome {
	outcome := r.Match(utterance)
	if !outcome.Matched {
		return outcome
	}
	r.invoke(outcome)
	return outcome
}

// invoke runs the handler; a panic is logged and the utterance still counts as consumed.
func (r *Router) invoke(outcome Outcome) {
	handler := outcome.Descriptor.Handler
	if handler == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("command handler failed",
				"command", outcome.Descriptor.ID,
				"utterance", outcome.Utterance,
				"panic", fmt.Sprint(rec),
			)
		}
	}()
	handler(outcome.Utterance)
}
