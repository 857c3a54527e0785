package spec

import (
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// DefaultBranch marks a node pinned to its repository's default branch. The
// in-image installer resolves it at clone time.
const DefaultBranch = "-"

// NodeEntry is one custom node to install, keyed by repository URL.
type NodeEntry struct {
	URL      string
	Revision string
	RepoName string
}

// NewNodeEntry validates the repository URL offline through go-git's
// transport endpoint parser and derives the clone directory name from it.
// An empty or "-" revision selects the default branch.
func NewNodeEntry(url, revision string) (NodeEntry, error) {
	if url == "" {
		return NodeEntry{}, &SpecError{Entry: "custom node", Reason: "repository url is required"}
	}
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return NodeEntry{}, &SpecError{Entry: url, Reason: "not a valid git repository url: " + err.Error()}
	}
	name := strings.TrimSuffix(path.Base(ep.Path), ".git")
	if name == "" || name == "." || name == "/" {
		return NodeEntry{}, &SpecError{Entry: url, Reason: "repository url has no path"}
	}
	if revision == "" {
		revision = DefaultBranch
	}
	return NodeEntry{URL: url, Revision: revision, RepoName: name}, nil
}
