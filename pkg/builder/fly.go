package builder

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/cmd"
	"github.com/comfykit/comfykit/pkg/config"
	"github.com/comfykit/comfykit/pkg/runner"
	"github.com/comfykit/comfykit/pkg/spec"
)

// FlyExecutor generates a fly.toml next to the build context and hands the
// build to Fly.io's remote builder.
type FlyExecutor struct {
	flags *config.Flags
	tasks runner.Runner
}

type flyConfig struct {
	App           string  `toml:"app"`
	PrimaryRegion string  `toml:"primary_region"`
	HTTPService   flyHTTP `toml:"http_service"`
	VMs           []flyVM `toml:"vm"`
}

type flyHTTP struct {
	InternalPort       int      `toml:"internal_port"`
	ForceHTTPS         bool     `toml:"force_https"`
	AutoStopMachines   string   `toml:"auto_stop_machines"`
	AutoStartMachines  bool     `toml:"auto_start_machines"`
	MinMachinesRunning int      `toml:"min_machines_running"`
	Processes          []string `toml:"processes"`
}

type flyVM struct {
	Memory  string `toml:"memory"`
	CPUKind string `toml:"cpu_kind"`
	CPUs    int    `toml:"cpus"`
}

func (f *FlyExecutor) Init() error {
	f.tasks = runner.New()
	log.Info().Str("engine", "fly").Msg("Initializing")
	return nil
}

func (f *FlyExecutor) SetFlags(flags *config.Flags) {
	f.flags = flags
}

// FlyToml renders the deployment descriptor for the configured app.
func FlyToml(flags *config.Flags) ([]byte, error) {
	cfg := flyConfig{
		App:           flags.FlyAppName,
		PrimaryRegion: flags.FlyRegion,
		HTTPService: flyHTTP{
			InternalPort:      8188,
			ForceHTTPS:        true,
			AutoStopMachines:  "stop",
			AutoStartMachines: true,
			Processes:         []string{"app"},
		},
		VMs: []flyVM{{
			Memory:  flags.FlyMemory,
			CPUKind: flags.FlyCPUKind,
			CPUs:    flags.FlyCPUs,
		}},
	}
	return toml.Marshal(cfg)
}

func (f *FlyExecutor) Execute(ctx context.Context, contextDir string) error {
	data, err := FlyToml(f.flags)
	if err != nil {
		return err
	}
	target := filepath.Join(contextDir, "fly.toml")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return &spec.IOError{Path: target, Err: err}
	}
	log.Debug().Str("file", target).Msg("Wrote deployment descriptor")

	deploy := cmd.New("flyctl").
		Arg("deploy", "--build-only", "--remote-only", "--push").
		Arg("--deploy-retries", "0").
		Dir(contextDir).
		PreInfo("Deploying " + f.flags.FlyAppName + " to Fly.io").
		SetVerbose(f.flags.Verbose)
	f.tasks = f.tasks.AddTask(deploy)
	return f.tasks.Run(ctx)
}
