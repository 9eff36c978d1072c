// Package resilience provides the fault-tolerance primitives used around
// speech inference: a bulkhead bounding concurrent transcriptions, a circuit
// breaker in front of the engine sidecar, and retry with exponential backoff
// for engine warm-up.
package resilience
