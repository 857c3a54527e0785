package spec

// Defaults mirror the upstream ComfyUI deployment: Ubuntu base, uv-managed
// python, ComfyUI from its canonical repository and a pinned Manager build.
const (
	DefaultBaseImage       = "ubuntu:22.04"
	DefaultPythonVersion   = "3.11"
	DefaultComfyRepo       = "https://github.com/comfyanonymous/ComfyUI.git"
	DefaultComfyRevision   = "master"
	DefaultManagerRepo     = "https://github.com/ltdrdata/ComfyUI-Manager.git"
	DefaultManagerRevision = "8897b9e0f77d85dc02610784e4c357329dd04f4f"
	DefaultCmd             = "python /comfyui/main.py --listen 0.0.0.0"
)

// EnvVar is one ENV assignment, ordered by first declaration.
type EnvVar struct {
	Key   string
	Value string
}

// CopyEntry is one COPY instruction: one or more sources and a destination.
// Never deduplicated.
type CopyEntry struct {
	Sources []string
	Dest    string
}

// BuildSpec is the root aggregate a single build invocation populates and
// consumes. It is owned by exactly one builder and never shared.
//
// Keyed collections (nodes, models, pip, apt, env) keep first-declaration
// order: re-declaring a key replaces the entry in place instead of appending.
type BuildSpec struct {
	baseImage       string
	pythonVersion   string
	comfyRepo       string
	comfyRevision   string
	managerRepo     string
	managerRevision string
	cmd             string

	nodes     []NodeEntry
	nodeIndex map[string]int

	models     []ModelEntry
	modelIndex map[string]int

	pip      []PipEntry
	pipIndex map[string]int

	apt      []string
	aptIndex map[string]int

	env      []EnvVar
	envIndex map[string]int

	runs   []string
	copies []CopyEntry
}

func New() *BuildSpec {
	return &BuildSpec{
		baseImage:       DefaultBaseImage,
		pythonVersion:   DefaultPythonVersion,
		comfyRepo:       DefaultComfyRepo,
		comfyRevision:   DefaultComfyRevision,
		managerRepo:     DefaultManagerRepo,
		managerRevision: DefaultManagerRevision,
		cmd:             DefaultCmd,
		nodeIndex:       map[string]int{},
		modelIndex:      map[string]int{},
		pipIndex:        map[string]int{},
		aptIndex:        map[string]int{},
		envIndex:        map[string]int{},
	}
}

// Setters overwrite on every call, so whichever configuration surface ran
// last wins.

func (s *BuildSpec) SetBaseImage(image string) { s.baseImage = image }

func (s *BuildSpec) SetPythonVersion(version string) { s.pythonVersion = version }

func (s *BuildSpec) SetComfyRepo(repo string) { s.comfyRepo = repo }

func (s *BuildSpec) SetRevision(revision string) { s.comfyRevision = revision }

func (s *BuildSpec) SetManagerRepo(repo, revision string) {
	s.managerRepo = repo
	s.managerRevision = revision
}

func (s *BuildSpec) SetCmd(cmd string) { s.cmd = cmd }

// AddNode registers a custom node. Re-declaring a URL replaces the earlier
// entry in place, so a changed revision takes effect without a second
// conflicting install step.
func (s *BuildSpec) AddNode(url, revision string) error {
	entry, err := NewNodeEntry(url, revision)
	if err != nil {
		return err
	}
	if i, ok := s.nodeIndex[entry.URL]; ok {
		s.nodes[i] = entry
		return nil
	}
	s.nodeIndex[entry.URL] = len(s.nodes)
	s.nodes = append(s.nodes, entry)
	return nil
}

// AddModel registers a model fetch. Two entries resolving to the same
// destination are a conflict, not an overwrite: the second one fails.
func (s *BuildSpec) AddModel(m ModelEntry) error {
	if err := validateModel(m); err != nil {
		return err
	}
	dest := m.Destination()
	if _, ok := s.modelIndex[dest]; ok {
		return &ConflictError{Path: dest}
	}
	s.modelIndex[dest] = len(s.models)
	s.models = append(s.models, m)
	return nil
}

// AddPip registers pip requirements. Duplicate package names keep the last
// specifier at the first declaration's position.
func (s *BuildSpec) AddPip(requirements ...string) error {
	for _, req := range requirements {
		entry, err := NewPipEntry(req)
		if err != nil {
			return err
		}
		if i, ok := s.pipIndex[entry.Name]; ok {
			s.pip[i] = entry
			continue
		}
		s.pipIndex[entry.Name] = len(s.pip)
		s.pip = append(s.pip, entry)
	}
	return nil
}

// AddApt registers system packages, deduplicated by name.
func (s *BuildSpec) AddApt(packages ...string) error {
	for _, pkg := range packages {
		if pkg == "" {
			return &SpecError{Entry: "apt package", Reason: "name is empty"}
		}
		if i, ok := s.aptIndex[pkg]; ok {
			s.apt[i] = pkg
			continue
		}
		s.aptIndex[pkg] = len(s.apt)
		s.apt = append(s.apt, pkg)
	}
	return nil
}

// AddEnv sets an environment variable, keeping first-declaration order.
func (s *BuildSpec) AddEnv(key, value string) error {
	if key == "" {
		return &SpecError{Entry: "env", Reason: "key is empty"}
	}
	if i, ok := s.envIndex[key]; ok {
		s.env[i] = EnvVar{Key: key, Value: value}
		return nil
	}
	s.envIndex[key] = len(s.env)
	s.env = append(s.env, EnvVar{Key: key, Value: value})
	return nil
}

// AddRun appends a raw shell command. Never deduplicated.
func (s *BuildSpec) AddRun(command string) error {
	if command == "" {
		return &SpecError{Entry: "run", Reason: "command is empty"}
	}
	s.runs = append(s.runs, command)
	return nil
}

// AddCopy appends a COPY of one or more sources to a destination.
func (s *BuildSpec) AddCopy(args ...string) error {
	if len(args) < 2 {
		return &SpecError{Entry: "copy", Reason: "requires at least one source and one destination"}
	}
	sources := make([]string, len(args)-1)
	copy(sources, args[:len(args)-1])
	s.copies = append(s.copies, CopyEntry{Sources: sources, Dest: args[len(args)-1]})
	return nil
}

func (s *BuildSpec) BaseImage() string     { return s.baseImage }
func (s *BuildSpec) PythonVersion() string { return s.pythonVersion }
func (s *BuildSpec) ComfyRepo() string     { return s.comfyRepo }
func (s *BuildSpec) Revision() string      { return s.comfyRevision }
func (s *BuildSpec) ManagerRepo() string   { return s.managerRepo }
func (s *BuildSpec) ManagerRevision() string {
	return s.managerRevision
}
func (s *BuildSpec) Cmd() string { return s.cmd }

func (s *BuildSpec) Nodes() []NodeEntry {
	return append([]NodeEntry(nil), s.nodes...)
}

func (s *BuildSpec) Models() []ModelEntry {
	return append([]ModelEntry(nil), s.models...)
}

func (s *BuildSpec) Pip() []PipEntry {
	return append([]PipEntry(nil), s.pip...)
}

func (s *BuildSpec) Apt() []string {
	return append([]string(nil), s.apt...)
}

func (s *BuildSpec) Env() []EnvVar {
	return append([]EnvVar(nil), s.env...)
}

func (s *BuildSpec) Runs() []string {
	return append([]string(nil), s.runs...)
}

func (s *BuildSpec) Copies() []CopyEntry {
	return append([]CopyEntry(nil), s.copies...)
}
