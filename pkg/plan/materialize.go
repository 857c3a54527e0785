package plan

import (
	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/spec"
)

// Materialize turns a populated BuildSpec into an ordered step registry.
// BuildSpec already enforces per-key uniqueness, so this is a straight
// translation; the registry's own dedup guards direct Add callers.
func Materialize(s *spec.BuildSpec) *Registry {
	r := NewRegistry()

	r.Add(Step{Category: BaseSetup, Payload: BaseConfig{
		BaseImage:     s.BaseImage(),
		PythonVersion: s.PythonVersion(),
		Env:           s.Env(),
		AptPackages:   s.Apt(),
	}})

	r.Add(Step{Category: AppInstall, Payload: ComfyInstall{
		Repo:            s.ComfyRepo(),
		Revision:        s.Revision(),
		ManagerRepo:     s.ManagerRepo(),
		ManagerRevision: s.ManagerRevision(),
	}})

	for _, n := range s.Nodes() {
		r.Add(Step{Category: NodeInstall, Key: n.URL, Payload: n})
	}
	for _, m := range s.Models() {
		r.Add(Step{Category: ModelFetch, Key: m.Destination(), Payload: m})
	}
	for _, p := range s.Pip() {
		r.Add(Step{Category: PipInstall, Key: p.Name, Payload: p})
	}
	for _, c := range s.Runs() {
		r.Add(Step{Category: RunCommand, Payload: c})
	}
	for _, c := range s.Copies() {
		r.Add(Step{Category: CopyFile, Payload: c})
	}

	r.Add(Step{Category: FinalCmd, Payload: s.Cmd()})

	log.Debug().Int("steps", r.Len()).Msg("Materialized build plan")
	return r
}
