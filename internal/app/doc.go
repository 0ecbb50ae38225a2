// ABOUTME: Application layer for interactive playback
// ABOUTME: Provides Session, the unit the player UI controls
// Package app ties decoding, rendering and output together into a
// playback session with pause, seek and speed controls.
package app
