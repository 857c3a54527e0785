package buildkit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfykit/comfykit/pkg/buildkit"
	"github.com/comfykit/comfykit/pkg/spec"
)

const dependsDoc = `{
  "custom_nodes": {
    "https://github.com/WASasquatch/was-node-suite-comfyui": {
      "state": "installed",
      "hash": "-"
    },
    "https://github.com/KoreTeknology/ComfyUI-Universal-Styler": {
      "state": "not-installed",
      "hash": "-"
    },
    "https://github.com/cubiq/ComfyUI_essentials": {
      "state": "installed",
      "hash": "33ff89fd354d8ec3ab6affb605a79a931b445d16"
    }
  }
}`

func TestCustomNodesFromDepends(t *testing.T) {
	b := buildkit.New().CustomNodesFromDepends([]byte(dependsDoc))
	require.NoError(t, b.Err())

	nodes := b.Spec().Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "https://github.com/WASasquatch/was-node-suite-comfyui", nodes[0].URL)
	assert.Equal(t, spec.DefaultBranch, nodes[0].Revision)
	assert.Equal(t, "https://github.com/cubiq/ComfyUI_essentials", nodes[1].URL)
	assert.Equal(t, "33ff89fd354d8ec3ab6affb605a79a931b445d16", nodes[1].Revision)
}

func TestCustomNodesFromDependsIsDeterministic(t *testing.T) {
	first := buildkit.New().CustomNodesFromDepends([]byte(dependsDoc))
	second := buildkit.New().CustomNodesFromDepends([]byte(dependsDoc))
	require.NoError(t, first.Err())
	require.NoError(t, second.Err())

	assert.Equal(t, first.Spec().Nodes(), second.Spec().Nodes())
}

func TestCustomNodesFromDependsRejectsMalformedJSON(t *testing.T) {
	b := buildkit.New().CustomNodesFromDepends([]byte("{not json"))

	var specErr *spec.SpecError
	assert.ErrorAs(t, b.Err(), &specErr)
}

func TestCustomNodesFromDependsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "depends.json")
	require.NoError(t, os.WriteFile(file, []byte(dependsDoc), 0o644))

	b := buildkit.New().CustomNodesFromDependsFile(file)
	require.NoError(t, b.Err())
	assert.Len(t, b.Spec().Nodes(), 2)
}

func TestCustomNodesFromDependsFileMissing(t *testing.T) {
	b := buildkit.New().CustomNodesFromDependsFile(filepath.Join(t.TempDir(), "nope.json"))

	var ioErr *spec.IOError
	assert.ErrorAs(t, b.Err(), &ioErr)
}
