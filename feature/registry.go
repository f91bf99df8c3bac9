package feature

import (
	"fmt"
	"sync"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

// Signature classifies a feature by which channel kind it applies to.
type Signature int

const (
	PhaseFeature Signature = iota
	FluorescenceFeature
)

func (s Signature) String() string {
	if s == PhaseFeature {
		return "phase"
	}
	return "fluorescence"
}

// Sample is the per-cell, per-frame input to a feature extractor function:
// the masked pixel values of the relevant channel, its tight bounding box,
// and (for fluorescence features) the paired background values.
type Sample struct {
	Area             int
	Y0, X0, Y1, X1   int
	Values           []float64
	Background       []float64 // nil if unavailable
	BackgroundWeight float64
}

// Fn computes one scalar feature value from a Sample.
type Fn func(Sample) float64

// Entry is one registered feature.
type Entry struct {
	Name      string
	Signature Signature
	Fn        Fn
}

// Registry is the static name -> extractor map consulted by the extractor
// and by configuration validation.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds a feature. Registration is static: re-registering an
// existing name is a ConfigError rather than silently overwriting it.
func (r *Registry) Register(name string, sig Signature, fn Fn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return perr.E(perr.ConfigError, fmt.Sprintf("feature %q already registered", name), nil)
	}
	r.entries[name] = Entry{Name: name, Signature: sig, Fn: fn}
	return nil
}

// Lookup returns the entry for name, if registered.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// Default is the registry populated with the builtin features. Callers
// needing additional project-specific features register them into Default
// at startup, before any stage runs.
var Default = NewRegistry()

func init() {
	mustRegister(Default, "area", PhaseFeature, areaFeature)
	mustRegister(Default, "aspect_ratio", PhaseFeature, aspectRatioFeature)
	mustRegister(Default, "intensity_total", FluorescenceFeature, intensityTotalFeature)
}

func mustRegister(r *Registry, name string, sig Signature, fn Fn) {
	if err := r.Register(name, sig, fn); err != nil {
		panic(err)
	}
}

func areaFeature(s Sample) float64 {
	return float64(s.Area)
}

func aspectRatioFeature(s Sample) float64 {
	h := s.Y1 - s.Y0
	w := s.X1 - s.X0
	if h <= 0 {
		return 0
	}
	return float64(w) / float64(h)
}

// intensityTotalFeature sums fl pixel values minus a clamped, weighted
// background contribution. w is forced to 0 when no background sample is
// attached.
func intensityTotalFeature(s Sample) float64 {
	w := s.BackgroundWeight
	if s.Background == nil {
		w = 0
	}
	var sum float64
	for i, v := range s.Values {
		bg := 0.0
		if s.Background != nil {
			bg = s.Background[i]
		}
		sum += v - w*bg
	}
	return sum
}
