// Package api exposes the gateway over HTTP: the transcription endpoint,
// key management, and operational endpoints.
package api
