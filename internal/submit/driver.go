// Package submit writes assembled job scripts to disk and drives the
// submission protocol against the external scheduler: one submission per
// planned job, plus the chained-resubmission entry point where each step
// depends on the job before it.
package submit

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
	"github.com/aimat-lab/AutoSlurm/internal/scheduler"
	"github.com/aimat-lab/AutoSlurm/internal/script"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
)

// DefaultBaseDir is the directory under the working directory where run
// directories and resume files live.
const DefaultBaseDir = ".aslurm"

// Driver orchestrates script writing and job submission for one invocation.
type Driver struct {
	// Sched performs the actual submissions. May be nil when DryRun is set.
	Sched scheduler.Scheduler

	// DryRun stops after writing scripts; the scheduler is never invoked.
	DryRun bool

	// BaseDir overrides DefaultBaseDir.
	BaseDir string
}

// Outcome records what happened to one job (or one chain step).
type Outcome struct {
	JobIndex   int
	MainPath   string
	ResumePath string
	JobID      string // empty on failure or dry run
	Err        error
}

func (d *Driver) baseDir() string {
	if d.BaseDir == "" {
		return DefaultBaseDir
	}
	return d.BaseDir
}

// NewRunDir creates a fresh scripts directory named by the current timestamp
// plus a short random suffix. Timestamp granularity is seconds; the suffix
// disambiguates rapid successive invocations.
func (d *Driver) NewRunDir() (string, error) {
	name := fmt.Sprintf("%s_%s",
		time.Now().Format("2006-01-02_15-04-05"),
		uuid.NewString()[:7])
	dir := filepath.Join(d.baseDir(), name)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Run writes main and resume scripts for every planned job into runDir and
// submits each main script. Jobs are independent: a failed submission is
// recorded and processing continues with the next job. The returned error
// aggregates all per-job failures.
func (d *Driver) Run(runDir, template string, jobs []plan.Job, opts script.Options) ([]Outcome, error) {
	if !d.DryRun {
		opts.SubmitCommand = d.Sched.SubmitCommand()
	}

	outcomes := make([]Outcome, 0, len(jobs))
	var errs *multierror.Error

	for i, job := range jobs {
		mainPath := filepath.Join(runDir, fmt.Sprintf("main_%d.sh", i))
		resumePath := filepath.Join(runDir, fmt.Sprintf("resume_%d.sh", i))

		opts.ResumeScriptPath = resumePath
		mainScript, resumeScript := script.Assemble(template, job, opts)

		if err := writeScript(mainPath, mainScript); err != nil {
			return outcomes, err
		}
		if err := writeScript(resumePath, resumeScript); err != nil {
			return outcomes, err
		}

		outcome := Outcome{JobIndex: i, MainPath: mainPath, ResumePath: resumePath}
		if !d.DryRun {
			jobID, err := d.Sched.Submit(mainPath, "")
			outcome.JobID = jobID
			outcome.Err = err
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("job %d: %w", i, err))
			}
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, errs.ErrorOrNil()
}

// Chain writes and submits one job family resumes+1 times, each submission
// after the first depending on the job before it. The previous job ID is
// threaded through the loop, never held as ambient state. A failed
// submission stops the remaining chain steps; already-submitted jobs stay
// scheduled.
func (d *Driver) Chain(runDir, template string, tasks []plan.Task, opts script.Options, resumes int) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, resumes+1)

	previousJobID := ""
	for step := 0; step <= resumes; step++ {
		scriptPath := filepath.Join(runDir, fmt.Sprintf("submit_%d.sh", step))
		content := script.AssembleChainStep(template, tasks, opts, previousJobID)

		if err := writeScript(scriptPath, content); err != nil {
			return outcomes, err
		}

		outcome := Outcome{JobIndex: step, MainPath: scriptPath}
		if d.DryRun {
			// Later dry-run steps still need a placeholder ID so their
			// resume commands reference something deterministic.
			previousJobID = strconv.Itoa(step)
			outcomes = append(outcomes, outcome)
			continue
		}

		jobID, err := d.Sched.Submit(scriptPath, previousJobID)
		outcome.JobID = jobID
		outcome.Err = err
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, fmt.Errorf("chain step %d: %w", step, err)
		}
		previousJobID = jobID
	}

	return outcomes, nil
}

func writeScript(path, content string) error {
	if err := utils.WriteFileAtomic(path, []byte(content), utils.PermExec); err != nil {
		return fmt.Errorf("could not write script %s: %w", path, err)
	}
	return nil
}
