// Package model defines the Model host contract and a synthetic
// implementation used in place of a trained model artifact. The host is
// a seam the rest of the core is indifferent to: an implementation may
// delegate to an embedded runtime, an RPC call, or (here) a
// deterministic stand-in classifier.
package model

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heatguard/risk-scoring-api/internal/apperrors"
)

// ClassLabels is the ordered four-class comfort scale the scorer maps
// onto risk points.
var ClassLabels = []string{"neutral", "slightly_warm", "warm", "hot"}

// Artifact is a loaded, named model instance.
type Artifact struct {
	Name        string
	Classes     []string
	FeatureSize int
	LoadedAt    time.Time
}

// Predictor is implemented by anything that can turn a feature vector
// into class probabilities; the synthetic stub and any future real
// backend both satisfy it.
type Predictor interface {
	Predict(ctx context.Context, vector []float64) (classIndex int, probabilities []float64, err error)
}

// Host is the thread-safe, TTL+LRU-cached model host.
type Host struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	loader   func(name string) (Predictor, *Artifact, error)
}

type hostEntry struct {
	name     string
	artifact *Artifact
	pred     Predictor
	loadedAt time.Time
}

// NewHost constructs a Host with the given TTL and soft capacity
// (defaults: 24h / 10). loader is called at most once per name per TTL
// window; pass nil to use the built-in synthetic loader.
func NewHost(ttl time.Duration, capacity int, loader func(name string) (Predictor, *Artifact, error)) *Host {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if capacity <= 0 {
		capacity = 10
	}
	if loader == nil {
		loader = syntheticLoader
	}
	return &Host{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		loader:   loader,
	}
}

// Load is idempotent: returns the cached artifact if present and fresh,
// otherwise loads, evicting the least-recently-used entry if the soft
// capacity would be exceeded.
func (h *Host) Load(name string) (*Artifact, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(name)
}

func (h *Host) loadLocked(name string) (*Artifact, error) {
	if el, ok := h.entries[name]; ok {
		e := el.Value.(*hostEntry)
		if time.Since(e.loadedAt) < h.ttl {
			h.order.MoveToFront(el)
			return e.artifact, nil
		}
		h.order.Remove(el)
		delete(h.entries, name)
	}

	pred, artifact, err := h.loader(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ModelUnavailable, fmt.Sprintf("failed to load artifact %q", name), err)
	}
	artifact.LoadedAt = time.Now()

	entry := &hostEntry{name: name, artifact: artifact, pred: pred, loadedAt: artifact.LoadedAt}
	el := h.order.PushFront(entry)
	h.entries[name] = el

	for h.order.Len() > h.capacity {
		back := h.order.Back()
		if back == nil {
			break
		}
		evicted := back.Value.(*hostEntry)
		delete(h.entries, evicted.name)
		h.order.Remove(back)
	}

	return artifact, nil
}

// Predict loads name if necessary, then runs inference. predict itself
// is never called while the cache lock is held, so concurrent
// predictions against the same or different artifacts never contend.
func (h *Host) Predict(ctx context.Context, name string, vector []float64) (int, []float64, error) {
	h.mu.Lock()
	if _, err := h.loadLocked(name); err != nil {
		h.mu.Unlock()
		return 0, nil, err
	}
	el := h.entries[name]
	pred := el.Value.(*hostEntry).pred
	h.mu.Unlock()

	idx, probs, err := pred.Predict(ctx, vector)
	if err != nil {
		return 0, nil, apperrors.Wrap(apperrors.Internal, "model inference failed", err)
	}
	return idx, probs, nil
}

// Info returns the cached artifact's metadata without refreshing it.
func (h *Host) Info(name string) (*Artifact, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	el, ok := h.entries[name]
	if !ok {
		return nil, false
	}
	return el.Value.(*hostEntry).artifact, true
}

// HealthStatus summarizes the host for the health aggregator.
type HealthStatus struct {
	LoadedArtifacts int
	Capacity        int
	DefaultLoaded   bool
}

// Health reports whether the named default artifact is loaded and fresh.
func (h *Host) Health(defaultName string) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	status := HealthStatus{LoadedArtifacts: h.order.Len(), Capacity: h.capacity}
	if el, ok := h.entries[defaultName]; ok {
		e := el.Value.(*hostEntry)
		status.DefaultLoaded = time.Since(e.loadedAt) < h.ttl
	}
	return status
}

// Clear drops every cached artifact.
func (h *Host) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string]*list.Element)
	h.order.Init()
}
