package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultDependencyMode is the sbatch dependency type used for chained
// resubmissions. aftercorr starts the dependent job once the corresponding
// task of the previous job terminates.
const DefaultDependencyMode = "aftercorr"

// submittedMarker is the word sbatch prints on successful submission
// ("Submitted batch job 123456"). Its presence, followed by a trailing
// job-ID token, is the whole protocol.
const submittedMarker = "Submitted"

// Slurm implements the Scheduler interface for SLURM.
type Slurm struct {
	sbatchBin      string
	dependencyMode string
	jobIDRe        *regexp.Regexp
}

// NewSlurm creates a SLURM scheduler. An empty sbatchBin falls back to
// looking up sbatch on PATH; an empty dependencyMode falls back to
// DefaultDependencyMode.
func NewSlurm(sbatchBin, dependencyMode string) (*Slurm, error) {
	binPath := sbatchBin
	if binPath == "" {
		var err error
		binPath, err = exec.LookPath("sbatch")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
	} else {
		if absPath, err := filepath.Abs(binPath); err == nil {
			binPath = absPath
		}
		info, err := os.Stat(binPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchedulerNotFound, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrSchedulerNotFound, binPath)
		}
	}

	if dependencyMode == "" {
		dependencyMode = DefaultDependencyMode
	}

	return &Slurm{
		sbatchBin:      binPath,
		dependencyMode: dependencyMode,
		jobIDRe:        regexp.MustCompile(`Submitted batch job (\d+)`),
	}, nil
}

// IsAvailable checks that sbatch was found and we're not inside a SLURM job.
func (s *Slurm) IsAvailable() bool {
	if s.sbatchBin == "" {
		return false
	}
	return !IsInsideJob()
}

// GetInfo returns information about the SLURM scheduler.
func (s *Slurm) GetInfo() *Info {
	info := &Info{
		Type:      "SLURM",
		Binary:    s.sbatchBin,
		InJob:     IsInsideJob(),
		Available: s.IsAvailable(),
	}

	if s.sbatchBin != "" {
		if version, err := s.getVersion(); err == nil {
			info.Version = version
		}
	}

	return info
}

// getVersion attempts to get the SLURM version.
func (s *Slurm) getVersion() (string, error) {
	cmd := exec.Command(s.sbatchBin, "--version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	// Parse version from output like "slurm 23.02.6"
	versionStr := strings.TrimSpace(string(output))
	parts := strings.Fields(versionStr)
	if len(parts) >= 2 {
		return parts[1], nil
	}

	return versionStr, nil
}

// SubmitCommand returns the sbatch binary path for use in generated scripts.
func (s *Slurm) SubmitCommand() string {
	return s.sbatchBin
}

// Submit submits a script via sbatch, optionally chained behind dependency.
// The scheduler's own exit status and output are surfaced verbatim on
// failure; on success the job ID is extracted from the submission output.
func (s *Slurm) Submit(scriptPath string, dependency string) (string, error) {
	args := []string{scriptPath}
	if dependency != "" {
		depArg := fmt.Sprintf("--dependency=%s:%s", s.dependencyMode, dependency)
		args = append([]string{depArg}, args...)
	}

	cmd := exec.Command(s.sbatchBin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewSubmissionError(filepath.Base(scriptPath), string(output), err)
	}

	return parseJobID(s.jobIDRe, string(output))
}

// parseJobID extracts the job identifier from submission output. The strict
// "Submitted batch job <id>" form is tried first; any line carrying the
// marker word followed by a trailing token is accepted as a fallback, since
// the ID is only ever used as an opaque dependency token.
func parseJobID(re *regexp.Regexp, output string) (string, error) {
	if matches := re.FindStringSubmatch(output); len(matches) >= 2 {
		return matches[1], nil
	}

	if strings.Contains(output, submittedMarker) {
		fields := strings.Fields(output)
		if len(fields) > 0 {
			return fields[len(fields)-1], nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrJobIDParseFailed, strings.TrimSpace(output))
}
