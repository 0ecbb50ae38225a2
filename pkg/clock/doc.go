// ABOUTME: Playback clock package
// ABOUTME: Provides a speed-aware media clock for position reporting
// Package clock provides PlaybackClock, a media clock whose position advances
// with real time scaled by the playback speed.
//
// Elapsed time is always committed at the old speed before a new speed is
// recorded, so position never jumps when speed changes mid-flight.
//
// Example:
//
//	c := clock.New()
//	c.Start()
//	c.SetPlaybackParameters(clock.Parameters{Speed: 1.5, Pitch: 1})
//	pos := c.PositionUs()
package clock
