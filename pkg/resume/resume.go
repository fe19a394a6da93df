// Package resume implements the task side of the resume handoff protocol.
//
// A long-running task imports this package, starts a Timer with its wall-
// clock budget, and periodically checks whether enough time remains. When
// it decides to stop, it writes a resume file naming the exact command line
// to re-invoke it; the resubmission trigger in the surrounding job script
// detects the file and chains a follow-up job.
//
// The only contract shared with the submission side is the file path
// convention <job_id>_<task_index>.resume and the content format: one
// literal shell command line.
package resume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Suffix is the resume file extension.
const Suffix = ".resume"

// ErrNotInJob indicates SLURM_JOB_ID is not set, so there is no job
// instance to write a resume file for.
var ErrNotInJob = errors.New("SLURM_JOB_ID not set, probably not running inside a scheduler job")

// FileName returns the resume file name for one task of one job instance.
func FileName(jobID string, taskIndex string) string {
	return fmt.Sprintf("%s_%s%s", jobID, taskIndex, Suffix)
}

// Write writes the resume file for the current task into dir, containing
// command as its entire content. The job ID comes from SLURM_JOB_ID; the
// task index from SLURM_SUBMIT_TASK_INDEX (0 when unset, i.e. a single-task
// job). Writing again overwrites the previous content; the file is never
// deleted by this package.
func Write(dir string, command string) error {
	jobID, ok := os.LookupEnv("SLURM_JOB_ID")
	if !ok {
		return ErrNotInJob
	}

	taskIndex := os.Getenv("SLURM_SUBMIT_TASK_INDEX")
	if taskIndex == "" {
		taskIndex = "0"
	}

	path := filepath.Join(dir, FileName(jobID, taskIndex))
	return os.WriteFile(path, []byte(command), 0644)
}

// Timer tracks elapsed wall-clock time against a fixed budget.
type Timer struct {
	start  time.Time
	budget time.Duration
}

// Start begins timing a run with the given wall-clock budget.
func Start(budget time.Duration) *Timer {
	return &Timer{start: time.Now(), budget: budget}
}

// Reset restarts the timer.
func (t *Timer) Reset() {
	t.start = time.Now()
}

// Elapsed returns the wall-clock time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// BudgetReached reports whether the configured budget has been used up.
func (t *Timer) BudgetReached() bool {
	return t.Elapsed() > t.budget
}
