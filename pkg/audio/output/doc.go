// ABOUTME: Audio output package for playing rendered audio
// ABOUTME: Provides the Output interface and an oto implementation
// Package output plays audio produced by a render stage.
//
// Outputs implement render.Sink. Submit never blocks: it queues what fits
// and reports the buffer unconsumed, and the render loop offers the same
// buffer again later. The device reads silence when nothing is queued.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(format)
//	stage := render.NewStage(out, clk)
package output
