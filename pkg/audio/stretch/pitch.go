// ABOUTME: Pitch period detection for the speed stage
// ABOUTME: Average magnitude difference search on a decimated mono signal
package stretch

const (
	// DefaultMinPitchHz is the lowest pitch the period search looks for
	DefaultMinPitchHz = 65
	// DefaultMaxPitchHz is the highest pitch the period search looks for
	DefaultMaxPitchHz = 400

	// amdfRate is the rate the coarse period search runs at
	amdfRate = 4000
)

// findPitchPeriod returns the pitch period in frames of the input at pos.
// The caller guarantees maxRequired frames are available from pos.
func (e *Engine) findPitchPeriod(pos int) int {
	skip := 1
	if e.sampleRate > amdfRate {
		skip = e.sampleRate / amdfRate
	}
	if e.minPeriod/skip < 1 {
		skip = 1
	}

	if e.channels == 1 && skip == 1 {
		return findPeriodInRange(e.input[pos:], e.minPeriod, e.maxPeriod)
	}

	e.downsample(pos, skip)
	period := findPeriodInRange(e.mono, e.minPeriod/skip, e.maxPeriod/skip)
	if skip == 1 {
		return period
	}

	// Refine the coarse estimate at full resolution
	period *= skip
	lo := max(period-(skip<<2), e.minPeriod)
	hi := min(period+(skip<<2), e.maxPeriod)
	if e.channels == 1 {
		return findPeriodInRange(e.input[pos:], lo, hi)
	}
	e.downsample(pos, 1)
	return findPeriodInRange(e.mono, lo, hi)
}

// downsample mixes maxRequired frames from pos into e.mono, averaging
// skip frames of every channel into each output sample.
func (e *Engine) downsample(pos, skip int) {
	n := e.maxRequired / skip
	span := skip * e.channels
	e.mono = e.mono[:0]
	base := pos * e.channels
	for i := 0; i < n; i++ {
		var sum int32
		for _, s := range e.input[base+i*span : base+(i+1)*span] {
			sum += int32(s)
		}
		e.mono = append(e.mono, int16(sum/int32(span)))
	}
}

// findPeriodInRange picks the period whose average magnitude difference
// per sample is smallest. samples must hold 2*maxPeriod values.
func findPeriodInRange(samples []int16, minPeriod, maxPeriod int) int {
	minPeriod = max(minPeriod, 1)
	maxPeriod = max(maxPeriod, minPeriod)

	best := 0
	var bestDiff int64 = 1
	for period := minPeriod; period <= maxPeriod; period++ {
		var diff int64
		for i := 0; i < period; i++ {
			d := int64(samples[i]) - int64(samples[i+period])
			if d < 0 {
				d = -d
			}
			diff += d
		}
		// diff/period < bestDiff/best without dividing
		if best == 0 || diff*int64(best) < bestDiff*int64(period) {
			bestDiff = diff
			best = period
		}
	}
	return best
}
