// ABOUTME: Player package driving audio through the render stage
// ABOUTME: Provides the Renderer loop used for playback and file rendering
// Package player runs the loop that reads decoded buffers, renders them
// at the current speed, pitch and rate, and hands the result to a sink.
package player
