// Package buildkit is the fluent entry point for composing a ComfyUI image
// build plan. A Builder owns one BuildSpec, walks the linear
// populate → materialize → render → save lifecycle exactly once, and
// surfaces the first declaration error when the pipeline runs.
package buildkit

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/config"
	"github.com/comfykit/comfykit/pkg/plan"
	"github.com/comfykit/comfykit/pkg/renderer"
	"github.com/comfykit/comfykit/pkg/spec"
)

type state int

const (
	stateUninitialized state = iota
	statePopulated
	stateMaterialized
	stateRendered
	stateSerialized
)

func (s state) String() string {
	return [...]string{
		"uninitialized",
		"populated",
		"materialized",
		"rendered",
		"serialized",
	}[s]
}

type Builder struct {
	spec      *spec.BuildSpec
	state     state
	err       error
	plan      *plan.Registry
	artifacts *renderer.Artifacts
}

func New() *Builder {
	return &Builder{spec: spec.New()}
}

// Err returns the first error recorded by a declaration call. The pipeline
// methods return it too, so chained construction only needs one check.
func (b *Builder) Err() error {
	return b.err
}

// Spec exposes the underlying aggregate, mainly for equivalence checks
// between the fluent and declarative construction paths.
func (b *Builder) Spec() *spec.BuildSpec {
	return b.spec
}

func (b *Builder) declare(op string, mutate func() error) *Builder {
	if b.err != nil {
		return b
	}
	if b.state > statePopulated {
		b.err = &spec.StateError{Op: op, State: b.state.String()}
		return b
	}
	if err := mutate(); err != nil {
		b.err = err
		return b
	}
	b.state = statePopulated
	return b
}

func (b *Builder) BaseImage(image string) *Builder {
	return b.declare("set base image", func() error {
		b.spec.SetBaseImage(image)
		return nil
	})
}

func (b *Builder) PythonVersion(version string) *Builder {
	return b.declare("set python version", func() error {
		b.spec.SetPythonVersion(version)
		return nil
	})
}

func (b *Builder) ComfyRepo(repo string) *Builder {
	return b.declare("set comfyui repo", func() error {
		b.spec.SetComfyRepo(repo)
		return nil
	})
}

// Revision pins the ComfyUI revision. The last call wins.
func (b *Builder) Revision(revision string) *Builder {
	return b.declare("set revision", func() error {
		b.spec.SetRevision(revision)
		return nil
	})
}

func (b *Builder) ManagerRepo(repo, revision string) *Builder {
	return b.declare("set manager repo", func() error {
		b.spec.SetManagerRepo(repo, revision)
		return nil
	})
}

// CustomNode declares a plugin to install. Re-declaring a URL replaces the
// earlier revision in place.
func (b *Builder) CustomNode(url, revision string) *Builder {
	return b.declare("add custom node", func() error {
		return b.spec.AddNode(url, revision)
	})
}

func (b *Builder) PipInstall(packages ...string) *Builder {
	return b.declare("add pip packages", func() error {
		return b.spec.AddPip(packages...)
	})
}

func (b *Builder) AptInstall(packages ...string) *Builder {
	return b.declare("add apt packages", func() error {
		return b.spec.AddApt(packages...)
	})
}

func (b *Builder) Env(key, value string) *Builder {
	return b.declare("set env", func() error {
		return b.spec.AddEnv(key, value)
	})
}

func (b *Builder) Run(command string) *Builder {
	return b.declare("add run command", func() error {
		return b.spec.AddRun(command)
	})
}

// Copy declares a COPY of one or more sources to the final argument.
func (b *Builder) Copy(args ...string) *Builder {
	return b.declare("add copy", func() error {
		return b.spec.AddCopy(args...)
	})
}

func (b *Builder) Cmd(command string) *Builder {
	return b.declare("set cmd", func() error {
		b.spec.SetCmd(command)
		return nil
	})
}

// Models gives access to the model-fetch declarations.
func (b *Builder) Models() *Models {
	return &Models{b: b}
}

// Apply merges a declarative profile through the same mutators the fluent
// API uses, so both construction paths converge on identical spec state.
// Fields populated by both surfaces resolve to whichever ran last.
func (b *Builder) Apply(p *config.Profile) *Builder {
	return b.declare("apply profile", func() error {
		if p.Comfy.Repo != "" {
			b.spec.SetComfyRepo(p.Comfy.Repo)
		}
		if p.Comfy.Revision != "" {
			b.spec.SetRevision(p.Comfy.Revision)
		}
		if p.Comfy.ManagerRepo != "" || p.Comfy.ManagerRevision != "" {
			repo := p.Comfy.ManagerRepo
			revision := p.Comfy.ManagerRevision
			if repo == "" {
				repo = spec.DefaultManagerRepo
			}
			if revision == "" {
				// A custom repo without a pin tracks its default branch;
				// the pinned default revision only fits the default repo.
				revision = spec.DefaultBranch
				if repo == spec.DefaultManagerRepo {
					revision = spec.DefaultManagerRevision
				}
			}
			b.spec.SetManagerRepo(repo, revision)
		}
		if p.BaseImage != "" {
			b.spec.SetBaseImage(p.BaseImage)
		}
		if p.PythonVersion != "" {
			b.spec.SetPythonVersion(p.PythonVersion)
		}
		for _, node := range p.CustomNodes {
			if err := b.spec.AddNode(node.URL, node.Revision); err != nil {
				return err
			}
		}
		for i, model := range p.Models {
			entry, err := model.Entry(i)
			if err != nil {
				return err
			}
			if err := b.spec.AddModel(entry); err != nil {
				return err
			}
		}
		if err := b.spec.AddPip(p.PipPackages...); err != nil {
			return err
		}
		if err := b.spec.AddApt(p.AptPackages...); err != nil {
			return err
		}
		for _, env := range p.Env {
			if err := b.spec.AddEnv(env.Key, env.Value); err != nil {
				return err
			}
		}
		for _, command := range p.Run {
			command, err := templateField("run", command, p.Variables)
			if err != nil {
				return err
			}
			if err := b.spec.AddRun(command); err != nil {
				return err
			}
		}
		for _, c := range p.Copy {
			if err := b.spec.AddCopy(append(c.Sources, c.Dest)...); err != nil {
				return err
			}
		}
		if p.Cmd != "" {
			command, err := templateField("cmd", p.Cmd, p.Variables)
			if err != nil {
				return err
			}
			b.spec.SetCmd(command)
		}
		return nil
	})
}

// templateField expands a profile string through the sprig template dialect.
// Profiles without declared variables pass strings through untouched.
func templateField(entry, pattern string, vars map[string]any) (string, error) {
	if len(vars) == 0 {
		return pattern, nil
	}
	out, err := renderer.TemplateString(pattern, vars)
	if err != nil {
		return "", &spec.SpecError{Entry: entry, Reason: err.Error()}
	}
	return out, nil
}

// Materialize freezes the spec into an ordered step registry.
func (b *Builder) Materialize() error {
	if b.err != nil {
		return b.err
	}
	if b.state > statePopulated {
		b.err = &spec.StateError{Op: "materialize", State: b.state.String()}
		return b.err
	}
	b.plan = plan.Materialize(b.spec)
	b.state = stateMaterialized
	return nil
}

// Render produces the Dockerfile and side-car files from the materialized
// plan. Pure; Save performs the writes.
func (b *Builder) Render() (*renderer.Artifacts, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.state != stateMaterialized {
		b.err = &spec.StateError{Op: "render", State: b.state.String()}
		return nil, b.err
	}
	artifacts, err := renderer.Render(b.plan.Steps())
	if err != nil {
		b.err = err
		return nil, err
	}
	b.artifacts = artifacts
	b.state = stateRendered
	return artifacts, nil
}

// Save writes the rendered artifacts into dir, overwriting existing files.
// Partial output on failure is the caller's cleanup problem.
func (b *Builder) Save(dir string) error {
	if b.err != nil {
		return b.err
	}
	if b.state != stateRendered {
		b.err = &spec.StateError{Op: "save", State: b.state.String()}
		return b.err
	}

	target := filepath.Join(dir, renderer.DockerfileName)
	if err := os.WriteFile(target, []byte(b.artifacts.Dockerfile), 0o644); err != nil {
		b.err = &spec.IOError{Path: target, Err: err}
		return b.err
	}
	log.Debug().Str("file", target).Msg("Wrote build file")

	names := make([]string, 0, len(b.artifacts.Files))
	for name := range b.artifacts.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		target := filepath.Join(dir, name)
		if err := os.WriteFile(target, b.artifacts.Files[name], 0o644); err != nil {
			b.err = &spec.IOError{Path: target, Err: err}
			return b.err
		}
		log.Debug().Str("file", target).Msg("Wrote build context file")
	}

	b.state = stateSerialized
	log.Info().Str("dir", dir).Int("files", len(names)+1).Msg("Saved build plan")
	return nil
}

// SaveBuildFile drives the remaining pipeline stages and writes everything
// into dir. Equivalent to Materialize + Render + Save.
func (b *Builder) SaveBuildFile(dir string) error {
	if b.err != nil {
		return b.err
	}
	if b.state >= stateSerialized {
		b.err = &spec.StateError{Op: "save", State: b.state.String()}
		return b.err
	}
	if b.state <= statePopulated {
		if err := b.Materialize(); err != nil {
			return err
		}
	}
	if b.state == stateMaterialized {
		if _, err := b.Render(); err != nil {
			return err
		}
	}
	return b.Save(dir)
}

// Artifacts returns the rendered artifacts, nil before Render.
func (b *Builder) Artifacts() *renderer.Artifacts {
	return b.artifacts
}
