// Package errors provides the structured error type used across the gateway.
// Every failure that reaches the HTTP boundary is an *AppError carrying a
// machine-readable code, an HTTP status, and a retryable hint.
package errors
