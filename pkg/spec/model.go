package spec

import (
	"fmt"
	"path"
)

// ModelRoot is where relative model destinations land inside the image.
const ModelRoot = "/comfyui/models"

// ModelEntry is a closed sum over the supported fetch strategies. Renderers
// switch over the concrete types; adding a strategy means adding a type here
// and handling it everywhere the compiler complains.
type ModelEntry interface {
	// Destination returns the resolved absolute in-container path. It is the
	// entry's unique key: no two models may share a destination.
	Destination() string

	modelEntry()
}

// WgetModel fetches a file from a direct URL.
type WgetModel struct {
	URL       string
	LocalPath string
}

func (m WgetModel) Destination() string { return resolveModelPath(m.LocalPath) }
func (m WgetModel) modelEntry()         {}

// HFFileModel fetches a single file from a Hugging Face repository.
type HFFileModel struct {
	RepoID    string
	Filename  string
	LocalPath string
	Revision  string
	Token     string
}

func (m HFFileModel) Destination() string { return resolveModelPath(m.LocalPath) }
func (m HFFileModel) modelEntry()         {}

// HFSnapshotModel fetches a whole Hugging Face repository into a directory.
type HFSnapshotModel struct {
	RepoID         string
	LocalDir       string
	Revision       string
	IgnorePatterns []string
	Token          string
}

func (m HFSnapshotModel) Destination() string { return resolveModelPath(m.LocalDir) }
func (m HFSnapshotModel) modelEntry()         {}

// CivitaiModel fetches a model from the Civitai marketplace API.
type CivitaiModel struct {
	ModelID   int
	LocalPath string
	Token     string
}

func (m CivitaiModel) Destination() string { return resolveModelPath(m.LocalPath) }
func (m CivitaiModel) modelEntry()         {}

func resolveModelPath(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(ModelRoot, p)
}

func validateModel(m ModelEntry) error {
	switch e := m.(type) {
	case WgetModel:
		if e.URL == "" {
			return &SpecError{Entry: "wget model", Reason: "url is required"}
		}
		if e.LocalPath == "" {
			return &SpecError{Entry: fmt.Sprintf("wget model %s", e.URL), Reason: "local_path is required"}
		}
	case HFFileModel:
		if e.RepoID == "" {
			return &SpecError{Entry: "hf_file model", Reason: "repo_id is required"}
		}
		if e.Filename == "" {
			return &SpecError{Entry: fmt.Sprintf("hf_file model %s", e.RepoID), Reason: "filename is required"}
		}
		if e.LocalPath == "" {
			return &SpecError{Entry: fmt.Sprintf("hf_file model %s", e.RepoID), Reason: "local_path is required"}
		}
	case HFSnapshotModel:
		if e.RepoID == "" {
			return &SpecError{Entry: "hf_snapshot model", Reason: "repo_id is required"}
		}
		if e.LocalDir == "" {
			return &SpecError{Entry: fmt.Sprintf("hf_snapshot model %s", e.RepoID), Reason: "local_dir is required"}
		}
	case CivitaiModel:
		if e.ModelID == 0 {
			return &SpecError{Entry: "civitai model", Reason: "model_id is required"}
		}
		if e.LocalPath == "" {
			return &SpecError{Entry: fmt.Sprintf("civitai model %d", e.ModelID), Reason: "local_path is required"}
		}
	default:
		return &SpecError{Entry: fmt.Sprintf("%T", m), Reason: "unknown model fetch strategy"}
	}
	return nil
}
