// Package version exposes build metadata set through -ldflags, falling back
// to the VCS stamps the Go toolchain embeds.
//
//	go build -ldflags "-X github.com/kbukum/asrgate/version.Version=1.4.0" ./cmd/asrgate
package version
