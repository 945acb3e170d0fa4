// Package runner launches and wraps the annotation tool. The tool
// itself is an opaque external program: it reads a staged input file
// and leaves a result file and a log file next to it, or fails.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LaunchSpec carries everything the runner process needs to finish a
// job after the tool is done.
type LaunchSpec struct {
	JobID     string
	UserID    string
	Email     string
	InputPath string
}

// Launcher starts the annotation process for a staged job. The launch
// is fire-and-forget: the process performs the completion transition
// on its own.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) error
}

// ExecLauncher spawns the runner binary as a detached child process.
type ExecLauncher struct {
	command string
}

var _ Launcher = (*ExecLauncher)(nil)

func NewExecLauncher(command string) *ExecLauncher {
	return &ExecLauncher{command: command}
}

func (l *ExecLauncher) Launch(_ context.Context, spec LaunchSpec) error {
	cmd := exec.Command(l.command,
		"--job-id", spec.JobID,
		"--user-id", spec.UserID,
		"--email", spec.Email,
		"--input", spec.InputPath,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s for job %s: %w", l.command, spec.JobID, err)
	}

	// reap the child; its exit status is its own business
	go func() {
		if err := cmd.Wait(); err != nil {
			zap.S().Named("launcher").Errorw("annotation process exited with error",
				"job_id", spec.JobID, "error", err)
		}
	}()

	return nil
}

// Annotate runs the tool on the staged input and waits for it.
func Annotate(ctx context.Context, tool, inputPath string) error {
	cmd := exec.CommandContext(ctx, tool, inputPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s on %s: %w (output: %s)", tool, inputPath, err, string(out))
	}
	return nil
}

// ResultPath derives the tool's result artifact name from the input
// file: sample.vcf becomes sample.annot.vcf.
func ResultPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	return base + ".annot" + ext
}

// LogPath derives the tool's log artifact name from the input file:
// sample.vcf becomes sample.vcf.count.log.
func LogPath(inputPath string) string {
	return inputPath + ".count.log"
}
