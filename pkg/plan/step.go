package plan

import "github.com/comfykit/comfykit/pkg/spec"

// Category orders provisioning steps. The constant order is the rendering
// order: steps are grouped by category first, declaration order second.
type Category int

const (
	BaseSetup Category = iota
	AppInstall
	NodeInstall
	ModelFetch
	PipInstall
	RunCommand
	CopyFile
	FinalCmd
)

var categories = [...]Category{
	BaseSetup,
	AppInstall,
	NodeInstall,
	ModelFetch,
	PipInstall,
	RunCommand,
	CopyFile,
	FinalCmd,
}

func (c Category) String() string {
	return [...]string{
		"base-setup",
		"app-install",
		"node-install",
		"model-fetch",
		"pip-install",
		"run-command",
		"copy-file",
		"final-cmd",
	}[c]
}

// Keyed reports whether steps of this category carry a unique key and
// replace earlier steps with the same key instead of appending.
func (c Category) Keyed() bool {
	switch c {
	case NodeInstall, ModelFetch, PipInstall:
		return true
	}
	return false
}

// Step is one provisioning step. Key is empty for non-keyed categories.
type Step struct {
	Category Category
	Key      string
	Payload  any
}

// BaseConfig is the BaseSetup payload.
type BaseConfig struct {
	BaseImage     string
	PythonVersion string
	Env           []spec.EnvVar
	AptPackages   []string
}

// ComfyInstall is the AppInstall payload.
type ComfyInstall struct {
	Repo            string
	Revision        string
	ManagerRepo     string
	ManagerRevision string
}
