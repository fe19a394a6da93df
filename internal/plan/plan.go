// Package plan partitions a flat task list into scheduler jobs under
// resource-fitting constraints.
package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTasks indicates an empty task list was handed to the planner
	ErrNoTasks = errors.New("no tasks to plan")

	// ErrMutuallyExclusiveConstraint indicates an invalid resource-fit configuration
	ErrMutuallyExclusiveConstraint = errors.New("exactly one of max_tasks or (num_gpus with gpus_per_task) must be configured")
)

// Task is one concrete shell command plus its global index. The index is
// assigned at expansion time and never changes; it keys both resume files
// and GPU-slot assignment.
type Task struct {
	Command string
	Index   int
}

// Job owns a contiguous slice of the task list. StartIndex is the global
// index of its first task.
type Job struct {
	Tasks      []Task
	StartIndex int
}

// Constraint describes how many tasks fit into one job. Exactly one of
// MaxTasks or the NumGPUs/GPUsPerTask pair must be set.
type Constraint struct {
	MaxTasks    *int // maximum tasks per job
	NumGPUs     *int // total GPUs available to one job
	GPUsPerTask *int // GPUs each task needs
}

// Validate checks the mutual-exclusion rules before planning begins.
func (c Constraint) Validate() error {
	if c.NumGPUs != nil {
		if c.MaxTasks != nil {
			return fmt.Errorf("%w: num_gpus and max_tasks are both set", ErrMutuallyExclusiveConstraint)
		}
		if c.GPUsPerTask == nil {
			return fmt.Errorf("%w: num_gpus requires gpus_per_task", ErrMutuallyExclusiveConstraint)
		}
		if *c.NumGPUs <= 0 || *c.GPUsPerTask <= 0 {
			return fmt.Errorf("%w: num_gpus and gpus_per_task must be positive", ErrMutuallyExclusiveConstraint)
		}
		if *c.NumGPUs < *c.GPUsPerTask {
			return fmt.Errorf("%w: gpus_per_task (%d) exceeds num_gpus (%d), no task fits into a job",
				ErrMutuallyExclusiveConstraint, *c.GPUsPerTask, *c.NumGPUs)
		}
		return nil
	}
	if c.GPUsPerTask != nil {
		if c.MaxTasks != nil {
			return fmt.Errorf("%w: gpus_per_task and max_tasks are both set", ErrMutuallyExclusiveConstraint)
		}
		return fmt.Errorf("%w: gpus_per_task requires num_gpus", ErrMutuallyExclusiveConstraint)
	}
	if c.MaxTasks == nil {
		return fmt.Errorf("%w: neither max_tasks nor num_gpus is set", ErrMutuallyExclusiveConstraint)
	}
	if *c.MaxTasks <= 0 {
		return fmt.Errorf("%w: max_tasks must be positive", ErrMutuallyExclusiveConstraint)
	}
	return nil
}

// TasksPerJob derives how many tasks fit into one job. Validate must have
// passed before calling this.
func (c Constraint) TasksPerJob() int {
	if c.MaxTasks != nil {
		return *c.MaxTasks
	}
	return *c.NumGPUs / *c.GPUsPerTask
}

// NewTasks wraps concrete command strings into tasks with increasing
// global indices starting at 0.
func NewTasks(commands []string) []Task {
	tasks := make([]Task, len(commands))
	for i, cmd := range commands {
		tasks[i] = Task{Command: cmd, Index: i}
	}
	return tasks
}

// Plan slices tasks into contiguous jobs of at most TasksPerJob tasks each,
// in original order. The last job may be smaller. Jobs never overlap and
// together cover every task exactly once.
func Plan(tasks []Task, c Constraint) ([]Job, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	perJob := c.TasksPerJob()
	numJobs := (len(tasks) + perJob - 1) / perJob

	jobs := make([]Job, 0, numJobs)
	for start := 0; start < len(tasks); start += perJob {
		end := start + perJob
		if end > len(tasks) {
			end = len(tasks)
		}
		jobs = append(jobs, Job{
			Tasks:      tasks[start:end],
			StartIndex: start,
		})
	}
	return jobs, nil
}
