package buildkit

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/spec"
)

// dependsDoc is the shape ComfyUI-Manager's cm-cli writes with
// deps-in-workflow: a custom_nodes object keyed by repository url.
type dependsDoc struct {
	CustomNodes map[string]dependsNode `json:"custom_nodes"`
}

type dependsNode struct {
	State string `json:"state"`
	Hash  string `json:"hash"`
}

// CustomNodesFromDepends declares every installed node from a depends.json
// document. Entries not marked installed are skipped; urls are added in
// sorted order so the resulting plan stays deterministic.
func (b *Builder) CustomNodesFromDepends(data []byte) *Builder {
	return b.declare("add nodes from depends", func() error {
		var doc dependsDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return &spec.SpecError{Entry: "depends document", Reason: err.Error()}
		}

		urls := make([]string, 0, len(doc.CustomNodes))
		for url := range doc.CustomNodes {
			urls = append(urls, url)
		}
		sort.Strings(urls)

		for _, url := range urls {
			node := doc.CustomNodes[url]
			if node.State != "installed" {
				log.Debug().Str("url", url).Str("state", node.State).Msg("Skipping node")
				continue
			}
			if err := b.spec.AddNode(url, node.Hash); err != nil {
				return err
			}
		}
		return nil
	})
}

// CustomNodesFromDependsFile reads a depends.json file and applies it.
func (b *Builder) CustomNodesFromDependsFile(path string) *Builder {
	if b.err != nil {
		return b
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.err = &spec.IOError{Path: path, Err: err}
		return b
	}
	return b.CustomNodesFromDepends(data)
}
