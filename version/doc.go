// Package version reports the nodeflow build identity.
//
// Release builds stamp it with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/nodeflow/version.Version=v0.4.0 \
//	    -X github.com/kbukum/nodeflow/version.Commit=$(git rev-parse --short HEAD)"
//
// Unstamped builds fall back to the VCS data the Go toolchain embeds.
package version
