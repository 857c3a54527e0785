// Package renderer turns an ordered build plan into the final Dockerfile
// text plus the manifests and helper scripts the image build consumes.
// Rendering is pure: no filesystem access, and identical plans produce
// byte-identical artifacts.
package renderer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig/v3"

	"github.com/comfykit/comfykit/pkg/plan"
	"github.com/comfykit/comfykit/pkg/spec"
)

// Artifact filenames, fixed so the Dockerfile's COPY lines and the helper
// scripts agree on them.
const (
	DockerfileName = "Dockerfile"
	ComfyManifest  = "10-install-comfy.json"
	ComfyScript    = "10-install-comfy.py"
	NodesManifest  = "20-install-nodes.json"
	NodesScript    = "20-install-nodes.py"
	ModelsManifest = "30-download-models.json"
	ModelsScript   = "30-download-models.py"
)

//go:embed assets/Dockerfile.tpl
var dockerfileTemplate string

//go:embed assets/10-install-comfy.py
var comfyScript []byte

//go:embed assets/20-install-nodes.py
var nodesScript []byte

//go:embed assets/30-download-models.py
var modelsScript []byte

var dockerfileTpl = template.Must(
	template.New(DockerfileName).Funcs(sprig.TxtFuncMap()).Parse(dockerfileTemplate),
)

// Artifacts is the rendered build plan: the Dockerfile and every side-car
// file to place next to it in the build context.
type Artifacts struct {
	Dockerfile string
	Files      map[string][]byte
}

type dockerfileContext struct {
	BaseImage     string
	PythonVersion string
	Env           []spec.EnvVar
	AptPackages   []string
	HasNodes      bool
	HasModels     bool
	PipInstalls   []string
	Commands      []string
	Copies        []spec.CopyEntry
	Cmd           string
}

type comfyManifest struct {
	Repo           string `json:"repo"`
	ComfyVersion   string `json:"comfy_version"`
	ManagerRepo    string `json:"manager_repo"`
	ManagerVersion string `json:"manager_version"`
}

type nodeManifestEntry struct {
	URL      string `json:"url"`
	Hash     string `json:"hash"`
	RepoName string `json:"repo_name"`
}

type modelManifestEntry struct {
	Kind           string   `json:"kind"`
	URL            string   `json:"url,omitempty"`
	RepoID         string   `json:"repo_id,omitempty"`
	Filename       string   `json:"filename,omitempty"`
	Revision       string   `json:"revision,omitempty"`
	IgnorePatterns []string `json:"ignore_patterns,omitempty"`
	ModelID        int      `json:"model_id,omitempty"`
	Token          string   `json:"token,omitempty"`
	Path           string   `json:"path"`
}

// Render produces the complete artifact set for an ordered step sequence.
func Render(steps []plan.Step) (*Artifacts, error) {
	ctx := dockerfileContext{}
	var comfy comfyManifest
	var nodes []nodeManifestEntry
	var models []modelManifestEntry

	for _, step := range steps {
		switch step.Category {
		case plan.BaseSetup:
			base, ok := step.Payload.(plan.BaseConfig)
			if !ok {
				return nil, payloadError(step)
			}
			ctx.BaseImage = base.BaseImage
			ctx.PythonVersion = base.PythonVersion
			ctx.Env = base.Env
			ctx.AptPackages = base.AptPackages
		case plan.AppInstall:
			install, ok := step.Payload.(plan.ComfyInstall)
			if !ok {
				return nil, payloadError(step)
			}
			comfy = comfyManifest{
				Repo:           install.Repo,
				ComfyVersion:   install.Revision,
				ManagerRepo:    install.ManagerRepo,
				ManagerVersion: install.ManagerRevision,
			}
		case plan.NodeInstall:
			node, ok := step.Payload.(spec.NodeEntry)
			if !ok {
				return nil, payloadError(step)
			}
			nodes = append(nodes, nodeManifestEntry{
				URL:      node.URL,
				Hash:     node.Revision,
				RepoName: node.RepoName,
			})
		case plan.ModelFetch:
			model, ok := step.Payload.(spec.ModelEntry)
			if !ok {
				return nil, payloadError(step)
			}
			models = append(models, modelManifest(model))
		case plan.PipInstall:
			pip, ok := step.Payload.(spec.PipEntry)
			if !ok {
				return nil, payloadError(step)
			}
			ctx.PipInstalls = append(ctx.PipInstalls, "'"+pip.Requirement+"'")
		case plan.RunCommand:
			command, ok := step.Payload.(string)
			if !ok {
				return nil, payloadError(step)
			}
			ctx.Commands = append(ctx.Commands, command)
		case plan.CopyFile:
			entry, ok := step.Payload.(spec.CopyEntry)
			if !ok {
				return nil, payloadError(step)
			}
			ctx.Copies = append(ctx.Copies, entry)
		case plan.FinalCmd:
			command, ok := step.Payload.(string)
			if !ok {
				return nil, payloadError(step)
			}
			ctx.Cmd = execForm(command)
		default:
			return nil, fmt.Errorf("unhandled step category %s", step.Category)
		}
	}

	ctx.HasNodes = len(nodes) > 0
	ctx.HasModels = len(models) > 0

	var dockerfile strings.Builder
	if err := dockerfileTpl.Execute(&dockerfile, ctx); err != nil {
		return nil, fmt.Errorf("templating %s: %w", DockerfileName, err)
	}

	files := map[string][]byte{
		ComfyScript: comfyScript,
	}
	var err error
	if files[ComfyManifest], err = marshalManifest(comfy); err != nil {
		return nil, err
	}
	if ctx.HasNodes {
		files[NodesScript] = nodesScript
		if files[NodesManifest], err = marshalManifest(nodes); err != nil {
			return nil, err
		}
	}
	if ctx.HasModels {
		files[ModelsScript] = modelsScript
		if files[ModelsManifest], err = marshalManifest(models); err != nil {
			return nil, err
		}
	}

	return &Artifacts{Dockerfile: dockerfile.String(), Files: files}, nil
}

func modelManifest(m spec.ModelEntry) modelManifestEntry {
	entry := modelManifestEntry{Path: m.Destination()}
	switch e := m.(type) {
	case spec.WgetModel:
		entry.Kind = "wget"
		entry.URL = e.URL
	case spec.HFFileModel:
		entry.Kind = "hf_file"
		entry.RepoID = e.RepoID
		entry.Filename = e.Filename
		entry.Revision = e.Revision
		entry.Token = e.Token
	case spec.HFSnapshotModel:
		entry.Kind = "hf_snapshot"
		entry.RepoID = e.RepoID
		entry.Revision = e.Revision
		entry.IgnorePatterns = e.IgnorePatterns
		entry.Token = e.Token
	case spec.CivitaiModel:
		entry.Kind = "civitai"
		entry.ModelID = e.ModelID
		entry.Token = e.Token
	}
	return entry
}

func marshalManifest(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// execForm renders a shell command line as a Dockerfile JSON-array CMD.
func execForm(command string) string {
	parts := splitCommand(command)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = strconv.Quote(p)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// splitCommand tokenizes a command line on whitespace, keeping single- or
// double-quoted arguments as one token with the quotes stripped.
func splitCommand(command string) []string {
	var parts []string
	var token strings.Builder
	inToken := false
	var quote rune
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				token.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				parts = append(parts, token.String())
				token.Reset()
				inToken = false
			}
		default:
			token.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		parts = append(parts, token.String())
	}
	return parts
}

func payloadError(step plan.Step) error {
	return fmt.Errorf("step category %s has unexpected payload %T", step.Category, step.Payload)
}
