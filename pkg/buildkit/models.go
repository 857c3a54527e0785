package buildkit

import "github.com/comfykit/comfykit/pkg/spec"

// Models declares model downloads on its parent builder. Every method
// returns the builder so declarations keep chaining:
//
//	buildkit.New().Models().Wget(url, "checkpoints/a.safetensors").Run("...")
type Models struct {
	b *Builder
}

// Wget fetches a file from a direct URL.
func (m *Models) Wget(url, localPath string) *Builder {
	return m.b.declare("add wget model", func() error {
		return m.b.spec.AddModel(spec.WgetModel{URL: url, LocalPath: localPath})
	})
}

// HFFile fetches a single file from a Hugging Face repository.
func (m *Models) HFFile(repoID, filename, localPath string) *Builder {
	return m.b.declare("add hf_file model", func() error {
		return m.b.spec.AddModel(spec.HFFileModel{
			RepoID:    repoID,
			Filename:  filename,
			LocalPath: localPath,
		})
	})
}

// HFSnapshot fetches a whole Hugging Face repository into localDir.
func (m *Models) HFSnapshot(repoID, localDir string) *Builder {
	return m.b.declare("add hf_snapshot model", func() error {
		return m.b.spec.AddModel(spec.HFSnapshotModel{RepoID: repoID, LocalDir: localDir})
	})
}

// Civitai fetches a model from the Civitai marketplace; token may be empty
// for public models.
func (m *Models) Civitai(modelID int, localPath, token string) *Builder {
	return m.b.declare("add civitai model", func() error {
		return m.b.spec.AddModel(spec.CivitaiModel{
			ModelID:   modelID,
			LocalPath: localPath,
			Token:     token,
		})
	})
}
