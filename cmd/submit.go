package cmd

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aimat-lab/AutoSlurm/internal/config"
	"github.com/aimat-lab/AutoSlurm/internal/plan"
	"github.com/aimat-lab/AutoSlurm/internal/scheduler"
	"github.com/aimat-lab/AutoSlurm/internal/script"
	"github.com/aimat-lab/AutoSlurm/internal/submit"
	"github.com/aimat-lab/AutoSlurm/internal/sweep"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
)

var submitCmd = &cobra.Command{
	Use:   "cmd [command args...] [cmdNx command args...]...",
	Short: "Submit one or more commands as scheduler jobs",
	Long: `Submit one or more commands as scheduler jobs.

Everything after "cmd" up to the next "cmd" token forms one command group.
A token of the form "cmdNx" repeats its group N times. Command arguments
may use the sweep shorthand <[a,b,c]> (paired lists) or <{a,b,c}>
(cross product) to expand one group into many tasks.

The expanded tasks are packed into as few jobs as the active config
allows, either by max_tasks or by fitting gpus_per_task into num_gpus.`,
	Example: `  aslurm -c gpu4 cmd python train.py --lr=0.001
  aslurm cmd python train.py --lr=<{0.1,0.01,0.001}>
  aslurm cmd python a.py cmd3x python b.py
  aslurm -c gpu4 -o time=48:00:00 -d cmd python train.py`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true, // Runtime errors should not show usage
	RunE:         runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().SetInterspersed(false)
}

// groupToken matches the tokens that introduce a command group:
// "cmd" or "cmdNx" for N literal repetitions of the group.
var groupToken = regexp.MustCompile(`^cmd(?:(\d+)x)?$`)

// extractCommands assembles the raw command strings from the argument list.
// Arguments between two group tokens are joined with spaces; "cmdNx" repeats
// its group N times. Empty groups are ignored.
func extractCommands(args []string) []string {
	var commands []string

	repetition := 1
	var current []string
	flush := func() {
		command := strings.Join(current, " ")
		if strings.TrimSpace(command) != "" {
			for i := 0; i < repetition; i++ {
				commands = append(commands, command)
			}
		}
		current = nil
	}

	for _, arg := range args {
		if m := groupToken.FindStringSubmatch(strings.TrimSpace(arg)); m != nil {
			flush()
			repetition = 1
			if m[1] != "" {
				// The pattern only admits digits, so this cannot fail.
				repetition, _ = strconv.Atoi(m[1])
			}
			continue
		}
		current = append(current, arg)
	}
	flush()

	return commands
}

func runSubmit(cmd *cobra.Command, args []string) error {
	commands := extractCommands(args)
	if len(commands) == 0 {
		return fmt.Errorf("no command specified (arguments after 'cmd' form the command to submit)")
	}

	// Sweep expansion turns each command group into one task per
	// combination of its placeholder values.
	commands, err := sweep.Expand(commands)
	if err != nil {
		return err
	}

	jobConfig, generalConfig, err := resolveConfigs()
	if err != nil {
		return err
	}
	applyConstraintFlags(jobConfig)
	if err := jobConfig.Validate(); err != nil {
		return err
	}

	fillers, err := mergedFillers(jobConfig)
	if err != nil {
		return err
	}

	tasks := plan.NewTasks(commands)
	jobs, err := plan.Plan(tasks, jobConfig.Constraint())
	if err != nil {
		return err
	}

	printSplitSummary(len(tasks), len(jobs), jobConfig)

	driver, err := newDriver()
	if err != nil {
		return err
	}
	runDir, err := driver.NewRunDir()
	if err != nil {
		return err
	}
	utils.PrintMessage("Job scripts will be written to %s", utils.StylePath(runDir))

	opts := script.Options{
		Fillers:       fillers,
		GlobalFillers: generalConfig.GlobalFillers,
		GPUsPerTask:   jobConfig.GPUsPerTask,
		ResumeDir:     script.DefaultResumeDir,
	}

	outcomes, err := driver.Run(runDir, jobConfig.Template, jobs, opts)
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			utils.PrintError("Failed to submit job %s: %v",
				utils.StyleNumber(outcome.JobIndex), outcome.Err)
		case driver.DryRun:
			utils.PrintMessage("Wrote job %s script to %s (not submitted)",
				utils.StyleNumber(outcome.JobIndex), utils.StylePath(outcome.MainPath))
		default:
			utils.PrintSuccess("Submitted job %s with ID %s",
				utils.StyleNumber(outcome.JobIndex), utils.StyleNumber(outcome.JobID))
		}
	}
	if err != nil {
		return err
	}

	if !driver.DryRun {
		utils.PrintHint("Check on your jobs with the 'squeue' command.")
	}
	return nil
}

// resolveConfigs loads the general config and the job config, falling back
// to the hostname mappings when no config name was given on the command line.
func resolveConfigs() (*config.JobConfig, *config.GeneralConfig, error) {
	generalConfig, err := config.LoadGeneralConfig()
	if err != nil {
		return nil, nil, err
	}

	name := configName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, nil, err
		}
		name, err = generalConfig.ResolveConfigForHostname(hostname)
		if err != nil {
			return nil, nil, err
		}
		utils.PrintMessage("Matched hostname %s to config %s",
			utils.StyleName(hostname), utils.StyleName(name))
	}

	jobConfig, err := config.LoadJobConfig(name)
	if err != nil {
		return nil, nil, err
	}
	return jobConfig, generalConfig, nil
}

// applyConstraintFlags overrides the job config's resource-fit fields from
// the command line. A negative flag value means "not set".
func applyConstraintFlags(jobConfig *config.JobConfig) {
	if gpusPerTaskFlag >= 0 {
		value := gpusPerTaskFlag
		jobConfig.GPUsPerTask = &value
	}
	if numGPUsFlag >= 0 {
		value := numGPUsFlag
		jobConfig.NumGPUs = &value
		jobConfig.MaxTasks = nil
	}
	if maxTasksFlag >= 0 {
		value := maxTasksFlag
		jobConfig.MaxTasks = &value
		jobConfig.NumGPUs = nil
		jobConfig.GPUsPerTask = nil
	}
}

// mergedFillers combines the config's default fillers with the
// --overwrite-fillers pairs, command line taking precedence.
func mergedFillers(jobConfig *config.JobConfig) (map[string]string, error) {
	fillers := make(map[string]string, len(jobConfig.DefaultFillers))
	for key, value := range jobConfig.DefaultFillers {
		fillers[key] = value
	}

	overrides, err := config.ParseFillerOverrides(overwriteFillers)
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		fillers[key] = value
	}
	return fillers, nil
}

func printSplitSummary(numTasks, numJobs int, jobConfig *config.JobConfig) {
	suffix := ""
	if jobConfig.GPUsPerTask != nil {
		suffix = fmt.Sprintf(" using %d GPU(s) per task", *jobConfig.GPUsPerTask)
	}
	utils.PrintMessage("Splitting the %s tasks into %s job(s) (max. %s task(s) per job%s).",
		utils.StyleNumber(numTasks), utils.StyleNumber(numJobs),
		utils.StyleNumber(jobConfig.Constraint().TasksPerJob()), suffix)
}

// newDriver builds the submission driver for this invocation. Outside a dry
// run an active scheduler is required.
func newDriver() (*submit.Driver, error) {
	driver := &submit.Driver{
		DryRun:  !config.Global.SubmitJob,
		BaseDir: config.Global.ResumeDir,
	}
	if driver.DryRun {
		return driver, nil
	}

	sched := scheduler.Active()
	if sched == nil {
		if scheduler.IsInsideJob() {
			return nil, scheduler.ErrAlreadyInJob
		}
		return nil, scheduler.ErrSchedulerNotFound
	}
	driver.Sched = sched
	return driver, nil
}
