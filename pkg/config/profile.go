// Package config holds the CLI flag set and the declarative build profile.
// A profile is the YAML twin of the fluent builder API: both populate the
// same BuildSpec, and unknown keys are ignored for forward compatibility.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/comfykit/comfykit/pkg/spec"
)

type Profile struct {
	Comfy         ComfyConfig    `yaml:"comfyui"`
	BaseImage     string         `yaml:"base_image"`
	PythonVersion string         `yaml:"python_version"`
	CustomNodes   []NodeConfig   `yaml:"custom_nodes"`
	Models        []ModelConfig  `yaml:"models"`
	PipPackages   []string       `yaml:"pip_packages"`
	AptPackages   []string       `yaml:"apt_packages"`
	Env           EnvConfig      `yaml:"env"`
	Variables     map[string]any `yaml:"variables"`
	Run           []string       `yaml:"run"`
	Copy          []CopyConfig   `yaml:"copy"`
	Cmd           string         `yaml:"cmd"`
}

type ComfyConfig struct {
	Repo            string `yaml:"repo"`
	Revision        string `yaml:"revision"`
	ManagerRepo     string `yaml:"manager_repo"`
	ManagerRevision string `yaml:"manager_revision"`
}

type NodeConfig struct {
	URL      string `yaml:"url"`
	Revision string `yaml:"revision"`
}

// ModelConfig is the tagged union of fetch strategies: exactly one of the
// fields must be set.
type ModelConfig struct {
	Wget       *WgetConfig       `yaml:"wget"`
	HFFile     *HFFileConfig     `yaml:"hf_file"`
	HFSnapshot *HFSnapshotConfig `yaml:"hf_snapshot"`
	Civitai    *CivitaiConfig    `yaml:"civitai"`
}

type WgetConfig struct {
	URL       string `yaml:"url"`
	LocalPath string `yaml:"local_path"`
}

type HFFileConfig struct {
	RepoID    string `yaml:"repo_id"`
	Filename  string `yaml:"filename"`
	LocalPath string `yaml:"local_path"`
	Revision  string `yaml:"revision"`
	Token     string `yaml:"token"`
}

type HFSnapshotConfig struct {
	RepoID         string   `yaml:"repo_id"`
	LocalDir       string   `yaml:"local_dir"`
	Revision       string   `yaml:"revision"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	Token          string   `yaml:"token"`
}

type CivitaiConfig struct {
	ModelID   int    `yaml:"model_id"`
	LocalPath string `yaml:"local_path"`
	Token     string `yaml:"token"`
}

type CopyConfig struct {
	Sources []string `yaml:"sources"`
	Dest    string   `yaml:"dest"`
}

// EnvConfig preserves the document order of an env mapping; plain map
// decoding would randomize it and break byte-identical rendering.
type EnvConfig []spec.EnvVar

func (e *EnvConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("env must be a mapping, got %s", value.Tag)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		*e = append(*e, spec.EnvVar{
			Key:   value.Content[i].Value,
			Value: value.Content[i+1].Value,
		})
	}
	return nil
}

// Entry converts the tagged union to a spec model entry. An entry with no
// recognized tag, or more than one, fails fast naming its position.
func (m ModelConfig) Entry(index int) (spec.ModelEntry, error) {
	var entries []spec.ModelEntry
	if m.Wget != nil {
		entries = append(entries, spec.WgetModel{URL: m.Wget.URL, LocalPath: m.Wget.LocalPath})
	}
	if m.HFFile != nil {
		entries = append(entries, spec.HFFileModel{
			RepoID:    m.HFFile.RepoID,
			Filename:  m.HFFile.Filename,
			LocalPath: m.HFFile.LocalPath,
			Revision:  m.HFFile.Revision,
			Token:     m.HFFile.Token,
		})
	}
	if m.HFSnapshot != nil {
		entries = append(entries, spec.HFSnapshotModel{
			RepoID:         m.HFSnapshot.RepoID,
			LocalDir:       m.HFSnapshot.LocalDir,
			Revision:       m.HFSnapshot.Revision,
			IgnorePatterns: m.HFSnapshot.IgnorePatterns,
			Token:          m.HFSnapshot.Token,
		})
	}
	if m.Civitai != nil {
		entries = append(entries, spec.CivitaiModel{
			ModelID:   m.Civitai.ModelID,
			LocalPath: m.Civitai.LocalPath,
			Token:     m.Civitai.Token,
		})
	}
	switch len(entries) {
	case 1:
		return entries[0], nil
	case 0:
		return nil, &spec.SpecError{
			Entry:  fmt.Sprintf("models[%d]", index),
			Reason: "unknown fetch strategy, expected one of wget, hf_file, hf_snapshot, civitai",
		}
	default:
		return nil, &spec.SpecError{
			Entry:  fmt.Sprintf("models[%d]", index),
			Reason: "more than one fetch strategy declared",
		}
	}
}

// Load reads a declarative build profile from a YAML file.
func Load(filename string) (*Profile, error) {
	file, err := os.Open(filename)
	if err != nil {
		log.Error().Err(err).Str("profile", filename).Msg("Error loading profile")
		return nil, err
	}
	defer file.Close()

	var profile Profile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&profile); err != nil {
		log.Error().Err(err).Msg("Decoding YAML " + filename + " failed! Check syntax and try again")
		return nil, &spec.SpecError{Entry: filename, Reason: err.Error()}
	}
	return &profile, nil
}
