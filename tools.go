//go:build tools

// Development tools pinned in go.mod; not linked into any binary.
package fleetdash

import (
	_ "golang.org/x/tools/cmd/goimports"
)
