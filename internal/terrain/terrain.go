package terrain

import (
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidConfig wraps every configuration failure raised by Generate and Smooth.
var ErrInvalidConfig = fmt.Errorf("invalid terrain configuration")

// Config captures the tunable inputs for midpoint displacement generation.
type Config struct {
	Width     int
	Height    float64
	Roughness float64
	MinHeight float64
	MaxHeight float64
	// Seed selects the deterministic generator when non-nil; otherwise an
	// unseeded source is used and two runs will almost surely differ.
	Seed *int64
}

// Terrain is an immutable 1-D heightmap. Heights are y-down surface
// coordinates: smaller values sit higher on screen.
type Terrain struct {
	points []float64
	width  int
	height float64
}

// Generate builds a heightmap via recursive midpoint displacement.
func Generate(cfg Config) (*Terrain, error) {
	//1.- Fail fast on programmer errors instead of silently clamping.
	if cfg.Width <= 0 {
		return nil, fmt.Errorf("%w: width must be positive, got %d", ErrInvalidConfig, cfg.Width)
	}
	if cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: height must be positive, got %v", ErrInvalidConfig, cfg.Height)
	}
	if cfg.Roughness < 0 || cfg.Roughness > 1 {
		return nil, fmt.Errorf("%w: roughness must lie in [0,1], got %v", ErrInvalidConfig, cfg.Roughness)
	}
	if cfg.MinHeight > cfg.MaxHeight {
		return nil, fmt.Errorf("%w: minHeight %v exceeds maxHeight %v", ErrInvalidConfig, cfg.MinHeight, cfg.MaxHeight)
	}

	//2.- Pick the random source: a seeded LCG honours the determinism contract.
	var draw func() float64
	if cfg.Seed != nil {
		lcg := newLCG(uint64(*cfg.Seed))
		draw = lcg.float64
	} else {
		draw = rand.Float64
	}

	span := cfg.MaxHeight - cfg.MinHeight
	points := make([]float64, cfg.Width)
	//3.- Seed the endpoints independently from uniform draws over the full range.
	points[0] = cfg.MinHeight + draw()*span
	points[cfg.Width-1] = cfg.MinHeight + draw()*span

	//4.- Recursively displace midpoints with a displacement shrinking by roughness.
	displace(points, 0, cfg.Width-1, span, cfg, draw)

	//5.- Clamp every height so the invariant holds even for extreme offsets.
	for i, p := range points {
		points[i] = clamp(p, cfg.MinHeight, cfg.MaxHeight)
	}
	return &Terrain{points: points, width: cfg.Width, height: cfg.Height}, nil
}

func displace(points []float64, lo, hi int, displacement float64, cfg Config, draw func() float64) {
	if hi-lo < 2 {
		return
	}
	mid := (lo + hi) / 2
	//1.- Average the range endpoints and add a symmetric offset in ±displacement/2.
	average := (points[lo] + points[hi]) / 2
	offset := (draw() - 0.5) * displacement
	points[mid] = clamp(average+offset, cfg.MinHeight, cfg.MaxHeight)
	//2.- Recurse on both halves with the displacement decayed by roughness.
	next := displacement * cfg.Roughness
	displace(points, lo, mid, next, cfg, draw)
	displace(points, mid, hi, next, cfg, draw)
}

// Width reports the number of horizontal units covered by the heightmap.
func (t *Terrain) Width() int {
	if t == nil {
		return 0
	}
	return t.width
}

// Height reports the configured arena height.
func (t *Terrain) Height() float64 {
	if t == nil {
		return 0
	}
	return t.height
}

// Points returns a defensive copy of the heightmap samples.
func (t *Terrain) Points() []float64 {
	if t == nil {
		return nil
	}
	return append([]float64(nil), t.points...)
}

// HeightAt returns the surface height at floor(x), reporting false outside [0,width).
func (t *Terrain) HeightAt(x float64) (float64, bool) {
	if t == nil {
		return 0, false
	}
	idx := int(math.Floor(x))
	if idx < 0 || idx >= t.width {
		return 0, false
	}
	return t.points[idx], true
}

// InterpolatedHeightAt linearly blends the two samples bracketing x.
func (t *Terrain) InterpolatedHeightAt(x float64) (float64, bool) {
	if t == nil {
		return 0, false
	}
	if x < 0 || x >= float64(t.width) {
		return 0, false
	}
	idx := int(math.Floor(x))
	//1.- The final sample has no right neighbour so it is returned verbatim.
	if idx >= t.width-1 {
		return t.points[t.width-1], true
	}
	frac := x - float64(idx)
	return t.points[idx]*(1-frac) + t.points[idx+1]*frac, true
}

// Smooth returns a new terrain where each interior point becomes the 3-point
// moving average of itself and its neighbours, applied iterations times.
func (t *Terrain) Smooth(iterations int) (*Terrain, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: terrain is nil", ErrInvalidConfig)
	}
	if iterations < 0 {
		return nil, fmt.Errorf("%w: iterations must be non-negative, got %d", ErrInvalidConfig, iterations)
	}
	current := append([]float64(nil), t.points...)
	for iter := 0; iter < iterations; iter++ {
		next := append([]float64(nil), current...)
		//1.- Endpoints are preserved exactly; only interior samples move.
		for i := 1; i < len(current)-1; i++ {
			next[i] = (current[i-1] + current[i] + current[i+1]) / 3
		}
		current = next
	}
	return &Terrain{points: current, width: t.width, height: t.height}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
