package terrain

// lcg is a 64-bit linear congruential generator. Terrain generation keeps its
// own source instead of math/rand so the seeded determinism contract cannot be
// broken by changes to the shared generator.
type lcg struct {
	state uint64
}

func newLCG(seed uint64) *lcg {
	//1.- Mix the raw seed once so small seeds do not start in a low-entropy state.
	l := &lcg{state: seed}
	l.next()
	return l
}

// next advances the generator using Knuth's MMIX multiplier.
func (l *lcg) next() uint64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return l.state
}

// float64 draws a uniform value in [0,1) from the top 53 bits.
func (l *lcg) float64() float64 {
	return float64(l.next()>>11) / float64(1<<53)
}
