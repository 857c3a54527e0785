// Package cmd wraps exec.Command with a small fluent surface used by the
// docker and flyctl executors.
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

type Cmd struct {
	cmd     string
	args    []string
	dir     string
	verbose bool
	preText string
}

func New(c string) *Cmd {
	return &Cmd{cmd: c}
}

func (c *Cmd) Arg(args ...string) *Cmd {
	c.args = append(c.args, args...)
	return c
}

// Dir sets the working directory for the command.
func (c *Cmd) Dir(dir string) *Cmd {
	c.dir = dir
	return c
}

func (c *Cmd) SetVerbose(verbosity bool) *Cmd {
	c.verbose = verbosity
	return c
}

func (c *Cmd) PreInfo(msg string) *Cmd {
	c.preText = msg
	return c
}

func (c *Cmd) Equal(other *Cmd) bool {
	return c.String() == other.String()
}

func (c *Cmd) String() string {
	return strings.Trim(fmt.Sprintf("%s %s", c.cmd, strings.Join(c.args, " ")), " ")
}

// Run executes the command. In verbose mode output streams through,
// otherwise it is captured and returned (and logged on failure).
func (c *Cmd) Run(ctx context.Context) (string, error) {
	if c.cmd == "" {
		return "", errors.New("command not set")
	}
	if c.preText != "" {
		log.Info().Msg(c.preText)
	}

	command := exec.CommandContext(ctx, c.cmd, c.args...)
	command.Dir = c.dir

	var b bytes.Buffer
	if c.verbose {
		command.Stdout = os.Stdout
		command.Stderr = os.Stderr
	} else {
		command.Stdout = &b
		command.Stderr = &b
	}

	log.Debug().Str("cmd", c.cmd).Interface("args", c.args).Msg("Running")
	err := command.Run()

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Warn().Str("cmd", c.cmd).Msg("Command was cancelled")
		} else if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("cmd", c.cmd).Msg("Command timed out")
		}
		return "", ctx.Err()
	}

	if err != nil {
		log.Error().Err(err).Str("cmd", c.cmd).Interface("args", c.args).Msg("Could not run command")
		log.Error().Msg(b.String())
		return b.String(), err
	}
	return b.String(), nil
}
