// Package script renders the main and resume job scripts for one planned job.
//
// Both scripts share the same templated preamble. The main script runs the
// job's tasks directly; the resume script re-runs the continuation commands
// that tasks of a timed-out prior job instance left behind in resume files.
// Both end with a trigger block that resubmits the resume script when any
// resume file for the running job exists.
package script

import (
	"fmt"
	"strings"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
)

// TaskIndexEnv is exported into each task's environment so the task knows
// which resume file to write.
const TaskIndexEnv = "SLURM_SUBMIT_TASK_INDEX"

// PreviousJobEnv carries the timed-out job's ID into the resume script,
// where it selects the resume files to evaluate.
const PreviousJobEnv = "PREVIOUS_SLURM_ID"

// DefaultResumeDir is where running tasks drop their resume files, relative
// to the job's working directory.
const DefaultResumeDir = "./.aslurm"

// Options configures script assembly for one job.
type Options struct {
	// Fillers are job-level placeholder values, substituted first.
	Fillers map[string]string

	// GlobalFillers are environment-wide defaults, substituted second.
	// A job filler value may contain a global filler placeholder; this
	// gives one level of indirection. Deeper nesting is not resolved.
	GlobalFillers map[string]string

	// GPUsPerTask enables CUDA_VISIBLE_DEVICES assignment when non-nil.
	GPUsPerTask *int

	// ResumeScriptPath is the on-disk path of the sibling resume script,
	// referenced by the resubmission trigger.
	ResumeScriptPath string

	// SubmitCommand is the scheduler invocation used by the trigger block.
	// Defaults to "sbatch".
	SubmitCommand string

	// ResumeDir overrides DefaultResumeDir.
	ResumeDir string
}

func (o Options) submitCommand() string {
	if o.SubmitCommand == "" {
		return "sbatch"
	}
	return o.SubmitCommand
}

func (o Options) resumeDir() string {
	if o.ResumeDir == "" {
		return DefaultResumeDir
	}
	return o.ResumeDir
}

// Substitute applies the two-pass placeholder substitution to template:
// job fillers first, then global fillers. Each pass replaces every literal
// <key> occurrence once per key; substitution is not recursive, so
// placeholders still unresolved after the second pass stay in the output.
func Substitute(template string, fillers, globalFillers map[string]string) string {
	for key, value := range fillers {
		template = strings.ReplaceAll(template, "<"+key+">", value)
	}
	for key, value := range globalFillers {
		template = strings.ReplaceAll(template, "<"+key+">", value)
	}
	return template
}

// Assemble renders the main and resume script bodies for job, starting from
// the given templated preamble.
func Assemble(template string, job plan.Job, opts Options) (mainScript, resumeScript string) {
	preamble := Substitute(template, opts.Fillers, opts.GlobalFillers)

	commands := make([]string, len(job.Tasks))
	for i, task := range job.Tasks {
		commands[i] = task.Command
	}

	resumeCommands := make([]string, len(job.Tasks))
	for i := range job.Tasks {
		resumeCommands[i] = fmt.Sprintf("eval `cat %s/${%s}_%d.resume`",
			opts.resumeDir(), PreviousJobEnv, job.StartIndex+i)
	}

	trigger := resubmitTrigger(opts)

	mainScript = preamble + taskLines(commands, job.StartIndex, opts.GPUsPerTask) + trigger
	resumeScript = preamble + taskLines(resumeCommands, job.StartIndex, opts.GPUsPerTask) + trigger
	return mainScript, resumeScript
}

// taskLines emits one backgrounded command line per task, each prefixed with
// the task-index export and, when GPUs are assigned, a contiguous job-local
// CUDA_VISIBLE_DEVICES block. GPU numbering restarts at 0 for every job.
func taskLines(commands []string, startIndex int, gpusPerTask *int) string {
	var b strings.Builder

	gpuCounter := 0
	for i, command := range commands {
		globalIndex := startIndex + i

		line := command + " &> slurm-${SLURM_JOB_ID}"
		if len(commands) > 1 {
			line += fmt.Sprintf("_%d", globalIndex)
		}
		line += ".out &"

		if gpusPerTask != nil {
			line = fmt.Sprintf("CUDA_VISIBLE_DEVICES=%s %s", gpuList(gpuCounter, *gpusPerTask), line)
			gpuCounter += *gpusPerTask
		}

		line = fmt.Sprintf("%s=%d %s", TaskIndexEnv, globalIndex, line)

		b.WriteString("\n")
		b.WriteString(line)
	}

	b.WriteString("\n\nwait")
	b.WriteString("\nsleep 10")
	return b.String()
}

// gpuList renders a comma-separated block of count GPU ordinals starting at first.
func gpuList(first, count int) string {
	ordinals := make([]string, count)
	for i := 0; i < count; i++ {
		ordinals[i] = fmt.Sprintf("%d", first+i)
	}
	return strings.Join(ordinals, ",")
}

// resubmitTrigger renders the shell conditional that fires a follow-up
// submission of the resume script when any resume file written by this job
// exists. It runs inside the job itself, so the chain keeps going without a
// long-lived supervising process.
func resubmitTrigger(opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\nif compgen -G \"%s/${SLURM_JOB_ID}_*.resume\" > /dev/null; then", opts.resumeDir())
	fmt.Fprintf(&b, "\n\texport %s=${SLURM_JOB_ID}", PreviousJobEnv)
	fmt.Fprintf(&b, "\n\t%s %s", opts.submitCommand(), opts.ResumeScriptPath)
	b.WriteString("\nfi")
	return b.String()
}
