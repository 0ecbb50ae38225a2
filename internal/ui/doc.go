// ABOUTME: Terminal UI for the player
// ABOUTME: Bubbletea model with speed, pitch, rate and volume controls
// Package ui renders playback status and maps keys onto a Controller.
package ui
