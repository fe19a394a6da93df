// Package scheduler drives the external batch scheduler binary: it submits
// job scripts, optionally with a dependency on a previous job, and parses
// the submission output for the assigned job identifier.
package scheduler

import (
	"os"
	"os/exec"
	"sync"
)

// Scheduler is the interface to one external batch scheduler.
type Scheduler interface {
	// IsAvailable reports whether jobs can be submitted right now.
	IsAvailable() bool

	// GetInfo returns details about the detected scheduler.
	GetInfo() *Info

	// SubmitCommand returns the submission binary path, for embedding in
	// generated script trigger blocks.
	SubmitCommand() string

	// Submit submits the script at scriptPath. A non-empty dependency is
	// the job ID the new job must wait for. Returns the assigned job ID.
	Submit(scriptPath string, dependency string) (string, error)
}

// Info holds information about the detected scheduler.
type Info struct {
	Type      string // Scheduler type (e.g., "SLURM")
	Binary    string // Path to the submission binary
	Version   string // Scheduler version (if available)
	InJob     bool   // Whether we're currently inside a scheduled job
	Available bool   // Whether the scheduler can accept submissions
}

// IsInsideJob reports whether this process runs inside a scheduled job.
// Submitting from inside a job is refused to prevent nested submissions.
func IsInsideJob() bool {
	_, inJob := os.LookupEnv("SLURM_JOB_ID")
	return inJob
}

// Detect returns a scheduler for the given submission binary. An empty
// binary path falls back to looking up sbatch on PATH.
func Detect(submitBin string) (Scheduler, error) {
	return NewSlurm(submitBin, "")
}

// LookupSubmitBin searches PATH for a known submission binary.
// Returns (path, scheduler type) or ("", "") when none is found.
func LookupSubmitBin() (string, string) {
	if path, err := exec.LookPath("sbatch"); err == nil {
		return path, "SLURM"
	}
	return "", ""
}

var (
	activeScheduler Scheduler
	schedulerMu     sync.RWMutex
)

// SetActive configures the scheduler instance the application should use.
// Passing nil clears any previously configured scheduler.
func SetActive(s Scheduler) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	activeScheduler = s
}

// Active returns the currently configured scheduler instance (may be nil).
func Active() Scheduler {
	schedulerMu.RLock()
	defer schedulerMu.RUnlock()
	return activeScheduler
}
