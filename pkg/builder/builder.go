// Package builder runs the external build collaborators against a saved
// build context: local docker and Fly.io remote builds. Plan construction
// never reaches into this package; it only consumes the emitted files.
package builder

import (
	"context"

	"github.com/comfykit/comfykit/pkg/config"
)

type Executor interface {
	// Init prepares the executor.
	Init() error

	SetFlags(flags *config.Flags)

	// Execute builds (and optionally runs/pushes/deploys) the image from a
	// saved build context directory.
	Execute(ctx context.Context, contextDir string) error
}
