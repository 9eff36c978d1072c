// Package process runs external tools (ffmpeg, ffprobe) with captured output,
// process-group cancellation and a SIGTERM grace period.
package process
