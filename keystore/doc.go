// Package keystore holds the set of valid API keys loaded from a
// newline-delimited key file.
//
// The active set lives behind an atomic pointer. Reload builds a complete
// replacement set and swaps it in, so Verify never sees a partial set and
// never blocks on a reload.
package keystore
