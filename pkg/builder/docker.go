package builder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/comfykit/comfykit/pkg/cmd"
	"github.com/comfykit/comfykit/pkg/config"
	"github.com/comfykit/comfykit/pkg/runner"
	"github.com/comfykit/comfykit/pkg/util"
)

// DockerExecutor builds the image with the local docker daemon, then
// optionally pushes it and runs a container with GPU access.
type DockerExecutor struct {
	flags     *config.Flags
	buildTask runner.Runner
	pushTasks runner.Runner
	runTask   runner.Runner
}

func (d *DockerExecutor) Init() error {
	d.buildTask = runner.New()
	d.pushTasks = runner.New()
	d.runTask = runner.New()
	log.Info().Str("engine", "docker").Msg("Initializing")
	return nil
}

func (d *DockerExecutor) SetFlags(flags *config.Flags) {
	d.flags = flags
	d.pushTasks = d.pushTasks.Threads(flags.Threads)
}

func (d *DockerExecutor) Execute(ctx context.Context, contextDir string) error {
	tag := d.flags.Tag

	build := cmd.New("docker").Arg("build").
		Arg("--network", "host").
		Arg("-t", tag).
		Arg(".").
		Dir(contextDir).
		PreInfo("Building " + tag).
		SetVerbose(d.flags.Verbose)
	d.buildTask = d.buildTask.AddTask(build)

	if err := d.buildTask.Run(ctx); err != nil {
		return err
	}

	if size, err := imageSize(ctx, tag); err == nil {
		log.Info().Str("image", tag).Str("size", util.ByteCountIEC(size)).Msg("Built")
	} else {
		util.WarnOnError(err, "Could not inspect built image")
	}

	if d.flags.Push {
		push := cmd.New("docker").Arg("push").
			Arg(tag).
			PreInfo("Pushing " + tag)
		if !d.flags.Verbose {
			push = push.Arg("--quiet")
		}
		d.pushTasks = d.pushTasks.AddTask(push)
		if err := d.pushTasks.RunParallel(ctx); err != nil {
			return err
		}
	}

	if d.flags.RunImage {
		run := cmd.New("docker").Arg("run", "--rm", "-ti").
			Arg("-p", fmt.Sprintf("%d:8188", d.flags.Port)).
			Arg("--gpus", "all").
			Arg(tag).
			PreInfo(fmt.Sprintf("Starting container on http://localhost:%d", d.flags.Port)).
			SetVerbose(true)
		d.runTask = d.runTask.AddTask(run)
		return d.runTask.Run(ctx)
	}
	return nil
}

func imageSize(ctx context.Context, image string) (uint64, error) {
	out, err := cmd.New("docker").Arg("image", "inspect", "--format", "json").Arg(image).Run(ctx)
	if err != nil {
		return 0, err
	}
	var inspect []struct {
		Size uint64 `json:"Size"`
	}
	if err := json.Unmarshal([]byte(out), &inspect); err != nil {
		return 0, err
	}
	if len(inspect) == 0 {
		return 0, fmt.Errorf("no inspect output for %s", image)
	}
	return inspect[0].Size, nil
}
