// ABOUTME: Period skipping and insertion for the speed stage
// ABOUTME: Pitch-synchronous overlap-add with a linear crossfade
package stretch

import (
	"math"
	"slices"
)

// changeSpeed consumes as much input as possible at stretch factor s and
// appends the result to e.stretched.
func (e *Engine) changeSpeed(s float64) {
	frames := len(e.input) / e.channels
	if frames < e.maxRequired {
		return
	}

	pos := 0
	start := len(e.stretched)
	for {
		if e.remainingToCopy > 0 {
			pos += e.copyInput(pos)
		} else {
			period := e.findPitchPeriod(pos)
			if s > 1 {
				pos += period + e.skipPitchPeriod(pos, s, period)
			} else {
				pos += e.insertPitchPeriod(pos, s, period)
			}
		}
		if pos+e.maxRequired > frames {
			break
		}
	}

	e.owed += float64(pos)/s - float64((len(e.stretched)-start)/e.channels)
	e.input = e.input[:copy(e.input, e.input[pos*e.channels:])]
}

// copyInput passes through frames owed by the last skip or insert
func (e *Engine) copyInput(pos int) int {
	n := min(e.remainingToCopy, e.maxRequired)
	ch := e.channels
	e.stretched = append(e.stretched, e.input[pos*ch:(pos+n)*ch]...)
	e.remainingToCopy -= n
	return n
}

// skipPitchPeriod crossfades one period into the next, dropping a period
// of input. Returns the frames produced beyond the skipped period.
func (e *Engine) skipPitchPeriod(pos int, s float64, period int) int {
	var n int
	if s >= 2 {
		n = e.whole(float64(period) / (s - 1))
	} else {
		n = period
		e.remainingToCopy = e.whole(float64(period) * (2 - s) / (s - 1))
	}

	ch := e.channels
	e.overlapAdd(n, e.input[pos*ch:], e.input[(pos+period)*ch:])
	return n
}

// insertPitchPeriod copies a period and crossfades back into it,
// repeating a period of input. Returns the frames consumed.
func (e *Engine) insertPitchPeriod(pos int, s float64, period int) int {
	var n int
	if s < 0.5 {
		n = e.whole(float64(period) * s / (1 - s))
	} else {
		n = period
		e.remainingToCopy = e.whole(float64(period) * (2*s - 1) / (1 - s))
	}

	ch := e.channels
	e.stretched = append(e.stretched, e.input[pos*ch:(pos+period)*ch]...)
	e.overlapAdd(n, e.input[(pos+period)*ch:], e.input[pos*ch:])
	return n
}

// whole returns the integer part of v plus the fraction carried from earlier
// calls, keeping the new remainder so the stage ratio holds on average.
func (e *Engine) whole(v float64) int {
	v += e.carry
	n := math.Floor(v)
	e.carry = v - n
	return int(n)
}

// overlapAdd appends n frames fading from down to up
func (e *Engine) overlapAdd(n int, down, up []int16) {
	if n <= 0 {
		return
	}
	ch := e.channels
	start := len(e.stretched)
	e.stretched = slices.Grow(e.stretched, n*ch)[:start+n*ch]
	out := e.stretched[start:]

	for c := 0; c < ch; c++ {
		for t := 0; t < n; t++ {
			i := t*ch + c
			v := (int64(down[i])*int64(n-t) + int64(up[i])*int64(t)) / int64(n)
			out[i] = int16(v)
		}
	}
}
