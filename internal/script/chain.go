package script

import (
	"fmt"
	"strings"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
)

// AssembleChainStep renders one script of a pre-built dependency chain.
//
// Step 0 runs the tasks directly. Later steps know the exact job ID of the
// step before them (the chain is submitted front to back by one process),
// so their resume commands reference that ID literally instead of going
// through an environment variable, and the scheduler's dependency mechanism
// replaces the in-script resubmission trigger.
func AssembleChainStep(template string, tasks []plan.Task, opts Options, previousJobID string) string {
	preamble := Substitute(template, opts.Fillers, opts.GlobalFillers)

	commands := make([]string, len(tasks))
	if previousJobID == "" {
		for i, task := range tasks {
			commands[i] = task.Command
		}
	} else {
		// Give the previous job's tasks a moment to finish writing
		// their resume files.
		preamble += "\nsleep 10"
		for i, task := range tasks {
			commands[i] = fmt.Sprintf("eval `cat %s_%d.resume`", previousJobID, task.Index)
		}
	}

	startIndex := 0
	if len(tasks) > 0 {
		startIndex = tasks[0].Index
	}

	body := taskLines(commands, startIndex, opts.GPUsPerTask)
	return preamble + strings.TrimSuffix(body, "\nsleep 10")
}
