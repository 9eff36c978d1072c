// Package transcription defines the speech-recognition boundary: canonical
// engine options, results, the short-form/long-form dispatch policy, and the
// Engine interface with its registry and process-wide holder.
//
// Engines implement two producing strategies. Short-form audio is
// transcribed in one call; long-form audio yields a lazy sequence of
// segments that Collect assembles into a Result.
package transcription
