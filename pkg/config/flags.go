package config

// Flags carries the CLI options through the pipeline.
type Flags struct {
	ProfileFile  string
	OutputDir    string
	Build        bool
	RunImage     bool
	Push         bool
	Fly          bool
	Preview      bool
	Verbose      bool
	PrintVersion bool
	Tag          string
	Port         int
	Threads      int

	FlyAppName string
	FlyRegion  string
	FlyMemory  string
	FlyCPUKind string
	FlyCPUs    int
}
