// Package audio inspects uploaded audio and converts it into the 16 kHz
// mono signed 16-bit PCM WAV the speech engine requires, using ffprobe and
// ffmpeg as subprocesses.
package audio
