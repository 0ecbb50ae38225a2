// ABOUTME: Signal analysis package
// ABOUTME: Checks rendered audio for level and frequency
// Package analysis measures rendered audio, mainly to check that speed
// changes leave frequency alone and pitch changes scale it.
package analysis
