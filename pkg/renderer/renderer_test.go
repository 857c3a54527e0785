package renderer_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfykit/comfykit/pkg/plan"
	"github.com/comfykit/comfykit/pkg/renderer"
	"github.com/comfykit/comfykit/pkg/spec"
)

func fullSpec(t *testing.T) *spec.BuildSpec {
	t.Helper()
	s := spec.New()
	s.SetBaseImage("nvidia/cuda:12.1.0-base-ubuntu22.04")
	s.SetPythonVersion("3.11")
	require.NoError(t, s.AddEnv("HF_HUB_ENABLE_HF_TRANSFER", "1"))
	require.NoError(t, s.AddApt("libgoogle-perftools-dev"))
	require.NoError(t, s.AddNode("https://github.com/ltdrdata/ComfyUI-Impact-Pack.git", "abc123"))
	require.NoError(t, s.AddNode("https://github.com/cubiq/ComfyUI_IPAdapter_plus.git", ""))
	require.NoError(t, s.AddModel(spec.WgetModel{
		URL:       "https://example.com/v1-5.safetensors",
		LocalPath: "checkpoints/v1-5.safetensors",
	}))
	require.NoError(t, s.AddModel(spec.HFFileModel{
		RepoID:    "stabilityai/sd-vae-ft-mse-original",
		Filename:  "vae-ft-mse-840000-ema-pruned.safetensors",
		LocalPath: "vae/vae-ft-mse.safetensors",
	}))
	require.NoError(t, s.AddPip("onnxruntime-gpu", "insightface==0.7.3"))
	require.NoError(t, s.AddRun("mkdir -p /comfyui/output"))
	require.NoError(t, s.AddCopy("workflow.json", "/comfyui/user/default/workflows/workflow.json"))
	s.SetCmd("python /comfyui/main.py --listen 0.0.0.0 --port 8188")
	return s
}

func render(t *testing.T, s *spec.BuildSpec) *renderer.Artifacts {
	t.Helper()
	artifacts, err := renderer.Render(plan.Materialize(s).Steps())
	require.NoError(t, err)
	return artifacts
}

func TestRenderIsDeterministic(t *testing.T) {
	first := render(t, fullSpec(t))
	second := render(t, fullSpec(t))

	assert.Equal(t, first.Dockerfile, second.Dockerfile)
	require.Equal(t, len(first.Files), len(second.Files))
	for name, data := range first.Files {
		assert.Equal(t, data, second.Files[name], name)
	}
}

func TestRenderEmptySpec(t *testing.T) {
	artifacts := render(t, spec.New())

	df := artifacts.Dockerfile
	assert.True(t, strings.HasPrefix(df, "FROM "+spec.DefaultBaseImage))
	assert.Contains(t, df, "python"+spec.DefaultPythonVersion)
	assert.Contains(t, df, "COPY 10-install-comfy.json 10-install-comfy.py /")
	assert.NotContains(t, df, "20-install-nodes")
	assert.NotContains(t, df, "30-download-models")
	assert.Contains(t, df, `CMD ["python", "/comfyui/main.py", "--listen", "0.0.0.0"]`)

	assert.Contains(t, artifacts.Files, renderer.ComfyManifest)
	assert.Contains(t, artifacts.Files, renderer.ComfyScript)
	assert.NotContains(t, artifacts.Files, renderer.NodesManifest)
	assert.NotContains(t, artifacts.Files, renderer.ModelsManifest)
}

func TestRenderInstructionOrder(t *testing.T) {
	df := render(t, fullSpec(t)).Dockerfile

	markers := []string{
		"FROM nvidia/cuda:12.1.0-base-ubuntu22.04",
		"ENV HF_HUB_ENABLE_HF_TRANSFER=1",
		"RUN apt-get update",
		"RUN python3 /10-install-comfy.py",
		"RUN python3 /20-install-nodes.py",
		"python3 /30-download-models.py",
		"RUN uv pip install --system --no-cache-dir 'onnxruntime-gpu'",
		"RUN uv pip install --system --no-cache-dir 'insightface==0.7.3'",
		"RUN mkdir -p /comfyui/output",
		"COPY workflow.json /comfyui/user/default/workflows/workflow.json",
		"CMD [\"python\", \"/comfyui/main.py\", \"--listen\", \"0.0.0.0\", \"--port\", \"8188\"]",
	}
	last := -1
	for _, marker := range markers {
		i := strings.Index(df, marker)
		require.GreaterOrEqual(t, i, 0, "missing %q", marker)
		assert.Greater(t, i, last, "%q out of order", marker)
		last = i
	}
}

func TestRenderMinimalScenario(t *testing.T) {
	s := spec.New()
	s.SetRevision("master")
	require.NoError(t, s.AddNode("https://example.com/repo", "-"))
	require.NoError(t, s.AddModel(spec.WgetModel{
		URL:       "https://host/file.safetensors",
		LocalPath: "checkpoints/a.safetensors",
	}))
	require.NoError(t, s.AddPip("numpy<2"))
	artifacts := render(t, s)

	df := artifacts.Dockerfile
	nodeInstall := strings.Index(df, "20-install-nodes")
	modelFetch := strings.Index(df, "30-download-models")
	pipInstall := strings.Index(df, "'numpy<2'")
	require.GreaterOrEqual(t, nodeInstall, 0)
	require.Greater(t, modelFetch, nodeInstall)
	require.Greater(t, pipInstall, modelFetch)

	var nodes []map[string]string
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.NodesManifest], &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "https://example.com/repo", nodes[0]["url"])
	assert.Equal(t, "-", nodes[0]["hash"])

	var models []map[string]any
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.ModelsManifest], &models))
	require.Len(t, models, 1)
	assert.Equal(t, "/comfyui/models/checkpoints/a.safetensors", models[0]["path"])
}

func TestRenderAptPackagesAppended(t *testing.T) {
	df := render(t, fullSpec(t)).Dockerfile
	assert.Contains(t, df, "ffmpeg libgoogle-perftools-dev && apt-get clean")
}

func TestRenderComfyManifest(t *testing.T) {
	artifacts := render(t, spec.New())

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.ComfyManifest], &manifest))
	assert.Equal(t, spec.DefaultComfyRepo, manifest["repo"])
	assert.Equal(t, spec.DefaultComfyRevision, manifest["comfy_version"])
	assert.Equal(t, spec.DefaultManagerRepo, manifest["manager_repo"])
	assert.Equal(t, spec.DefaultManagerRevision, manifest["manager_version"])
}

func TestRenderNodesManifest(t *testing.T) {
	artifacts := render(t, fullSpec(t))

	var nodes []map[string]string
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.NodesManifest], &nodes))
	require.Len(t, nodes, 2)
	assert.Equal(t, "https://github.com/ltdrdata/ComfyUI-Impact-Pack.git", nodes[0]["url"])
	assert.Equal(t, "abc123", nodes[0]["hash"])
	assert.Equal(t, "ComfyUI-Impact-Pack", nodes[0]["repo_name"])
	assert.Equal(t, "-", nodes[1]["hash"])
}

func TestRenderModelsManifest(t *testing.T) {
	artifacts := render(t, fullSpec(t))

	var models []map[string]any
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.ModelsManifest], &models))
	require.Len(t, models, 2)
	assert.Equal(t, "wget", models[0]["kind"])
	assert.Equal(t, "https://example.com/v1-5.safetensors", models[0]["url"])
	assert.Equal(t, "/comfyui/models/checkpoints/v1-5.safetensors", models[0]["path"])
	assert.Equal(t, "hf_file", models[1]["kind"])
	assert.Equal(t, "stabilityai/sd-vae-ft-mse-original", models[1]["repo_id"])
	assert.NotContains(t, models[1], "url")
}

func TestRenderCivitaiManifestEntry(t *testing.T) {
	s := spec.New()
	require.NoError(t, s.AddModel(spec.CivitaiModel{
		ModelID:   133005,
		LocalPath: "loras/juggernaut.safetensors",
		Token:     "secret",
	}))
	artifacts := render(t, s)

	var models []map[string]any
	require.NoError(t, json.Unmarshal(artifacts.Files[renderer.ModelsManifest], &models))
	require.Len(t, models, 1)
	assert.Equal(t, "civitai", models[0]["kind"])
	assert.Equal(t, float64(133005), models[0]["model_id"])
	assert.Equal(t, "secret", models[0]["token"])
}

func TestRenderHelperScriptsShipWithManifests(t *testing.T) {
	artifacts := render(t, fullSpec(t))

	assert.NotEmpty(t, artifacts.Files[renderer.ComfyScript])
	assert.NotEmpty(t, artifacts.Files[renderer.NodesScript])
	assert.NotEmpty(t, artifacts.Files[renderer.ModelsScript])
}

func TestRenderCmdWithQuotedArguments(t *testing.T) {
	s := spec.New()
	s.SetCmd(`sh -c "python /comfyui/main.py --listen 0.0.0.0"`)

	df := render(t, s).Dockerfile
	assert.Contains(t, df, `CMD ["sh", "-c", "python /comfyui/main.py --listen 0.0.0.0"]`)
}

func TestRenderCmdSingleQuotedArguments(t *testing.T) {
	s := spec.New()
	s.SetCmd(`bash -lc 'echo "ready" && python /comfyui/main.py'`)

	df := render(t, s).Dockerfile
	assert.Contains(t, df, `CMD ["bash", "-lc", "echo \"ready\" && python /comfyui/main.py"]`)
}

func TestRenderRejectsUnexpectedPayload(t *testing.T) {
	_, err := renderer.Render([]plan.Step{{Category: plan.BaseSetup, Payload: "not a base config"}})
	assert.Error(t, err)
}

func TestTemplateString(t *testing.T) {
	out, err := renderer.TemplateString("{{ .name | upper }}", map[string]any{"name": "comfy"})
	require.NoError(t, err)
	assert.Equal(t, "COMFY", out)
}
