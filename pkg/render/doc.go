// ABOUTME: Render stage between a PCM decoder and an audio sink
// ABOUTME: Package documentation for the speed-aware render stage
// Package render adapts a stretch engine to a decode/render loop.
//
// A Stage owns one engine per output format epoch. Each decoded buffer is
// written to the engine once; when the sink does not consume the result the
// render loop offers the same buffer again and the Stage resubmits the
// output it already produced. Speed changes are forwarded to the engine and
// to the playback clock together so the reported position follows the audio.
package render
