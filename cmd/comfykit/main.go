package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/comfykit/comfykit/pkg/builder"
	"github.com/comfykit/comfykit/pkg/buildkit"
	"github.com/comfykit/comfykit/pkg/config"
	"github.com/comfykit/comfykit/pkg/util"
)

var BuildVersion string // Will be set dynamically at build time.
var appName string = "comfykit"
var flags config.Flags

var cmd = &cobra.Command{
	Use:   appName,
	Short: "Generate and build ComfyUI Docker images from declarative profiles.",
	Long: `A CLI tool that turns a ComfyUI build profile (custom nodes, models,
pip packages) into a deterministic Dockerfile plus provisioning manifests,
and optionally builds the image locally or on Fly.io.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if flags.PrintVersion {
			return nil
		}
		if flags.ProfileFile == "" {
			return fmt.Errorf("the --profile flag is required")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		initLogger(flags.Verbose)

		if flags.PrintVersion {
			fmt.Printf("%s version: %s\n", appName, BuildVersion)
			return
		}

		if flags.Verbose {
			log.Debug().Msg("Verbose mode enabled.")
		}
		if flags.Push {
			log.Warn().Msg("Image will be pushed after building.")
		}

		log.Info().Str("profile", flags.ProfileFile).Msg("Loading")
		profile, err := config.Load(flags.ProfileFile)
		util.FailOnError(err, "Error loading profile")

		outputDir := flags.OutputDir
		if outputDir == "" {
			outputDir, err = os.MkdirTemp("", appName+"-")
			util.FailOnError(err, "Could not create build context directory")
		} else {
			util.FailOnError(os.MkdirAll(outputDir, 0o755), "Could not create build context directory")
		}

		b := buildkit.New().Apply(profile)
		util.FailOnError(b.SaveBuildFile(outputDir), "Error generating build plan")
		log.Info().Str("dir", outputDir).Msg("Build context ready")

		if flags.Preview {
			fmt.Print(b.Artifacts().Dockerfile)
			return
		}

		var engine builder.Executor
		switch {
		case flags.Fly:
			engine = &builder.FlyExecutor{}
		case flags.Build:
			engine = &builder.DockerExecutor{}
		default:
			log.Info().Msg("No build option given, stopping after plan generation. Use --build or --fly.")
			return
		}

		util.FailOnError(engine.Init(), "Failed to initialize builder.")
		engine.SetFlags(&flags)
		util.FailOnError(engine.Execute(context.Background(), outputDir), "Building failed with error, check above. Exiting.")

		if flags.OutputDir == "" {
			util.RemoveDir(outputDir)
		}
	},
}

func init() {
	if BuildVersion == "" {
		BuildVersion = "development" // Fallback if not set during build
	}

	cmd.PersistentFlags().StringVarP(&flags.ProfileFile, "profile", "c", "", "Path to the build profile (required)")

	cmd.Flags().StringVarP(&flags.OutputDir, "output", "o", "", "Directory for the generated build context, defaults to a temp dir")
	cmd.Flags().BoolVarP(&flags.Build, "build", "b", false, "Build the Docker image after generating")
	cmd.Flags().BoolVarP(&flags.RunImage, "run", "r", false, "Run the image after building")
	cmd.Flags().BoolVarP(&flags.Push, "push", "p", false, "Push the image after building")
	cmd.Flags().BoolVarP(&flags.Fly, "fly", "f", false, "Build remotely on Fly.io")
	cmd.Flags().BoolVar(&flags.Preview, "preview", false, "Print the generated Dockerfile and exit")
	cmd.Flags().StringVarP(&flags.Tag, "tag", "t", "comfyui:latest", "Image tag for local builds")
	cmd.Flags().IntVar(&flags.Port, "port", 8080, "Host port to expose when running the image")
	cmd.Flags().IntVar(&flags.Threads, "parallel", runtime.NumCPU(), "Number of threads for push tasks, defaults to number of CPUs")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Increase verbosity of output")
	cmd.Flags().BoolVarP(&flags.PrintVersion, "version", "V", false, "Display the application version and exit")

	cmd.Flags().StringVar(&flags.FlyAppName, "fly-app-name", "comfy-builder", "Fly.io app name")
	cmd.Flags().StringVar(&flags.FlyRegion, "fly-primary-region", "sjc", "Fly.io primary region")
	cmd.Flags().StringVar(&flags.FlyMemory, "fly-memory", "4gb", "Fly.io VM memory")
	cmd.Flags().StringVar(&flags.FlyCPUKind, "fly-cpu-kind", "shared", "Fly.io CPU kind")
	cmd.Flags().IntVar(&flags.FlyCPUs, "fly-cpus", 2, "Fly.io number of CPUs")
}

func main() {
	if err := cmd.Execute(); err != nil {
		util.FailOnError(err)
	}
}

func initLogger(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: colorable.NewColorableStderr()})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
