package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
	"github.com/aimat-lab/AutoSlurm/internal/script"
	"github.com/aimat-lab/AutoSlurm/internal/sweep"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
)

var chainResumes int

var chainCmd = &cobra.Command{
	Use:   "chain [command args...] [cmdNx command args...]...",
	Short: "Submit a command with a pre-built chain of resume jobs",
	Long: `Submit a command with a pre-built chain of resume jobs.

Instead of letting each job resubmit itself on demand, the whole chain is
submitted up front: the first job runs the commands directly, and each
following job depends on the one before it and re-runs whatever its
predecessor left behind in resume files. Useful on clusters where queue
wait times make on-demand resubmission expensive.`,
	Example: `  aslurm chain -r 3 cmd python train.py
  aslurm -c gpu4 chain -r 2 cmd python train.py --lr=<{0.1,0.01}>`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true, // Runtime errors should not show usage
	RunE:         runChain,
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.Flags().SetInterspersed(false)
	chainCmd.Flags().IntVarP(&chainResumes, "resumes", "r", 0, "Number of chained resume jobs to submit after the first")
}

func runChain(cmd *cobra.Command, args []string) error {
	if chainResumes < 0 {
		return fmt.Errorf("number of resumes must not be negative, got %d", chainResumes)
	}

	commands := extractCommands(args)
	if len(commands) == 0 {
		return fmt.Errorf("no command specified (arguments after 'cmd' form the command to submit)")
	}

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

	// All tasks of a chain go into one job family; each submission covers
	// every task, re-run from the predecessor's resume files.
	tasks := plan.NewTasks(commands)

	driver, err := newDriver()
	if err != nil {
		return err
	}
	runDir, err := driver.NewRunDir()
	if err != nil {
		return err
	}
	utils.PrintMessage("Job scripts will be written to %s", utils.StylePath(runDir))
	if driver.DryRun {
		utils.PrintWarning("Dry run with a resume chain: predecessor job IDs are placeholders.")
	}

	opts := script.Options{
		Fillers:       fillers,
		GlobalFillers: generalConfig.GlobalFillers,
		GPUsPerTask:   jobConfig.GPUsPerTask,
		ResumeDir:     script.DefaultResumeDir,
	}

	outcomes, err := driver.Chain(runDir, jobConfig.Template, tasks, opts, chainResumes)
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			utils.PrintError("Failed to submit chain step %s: %v",
				utils.StyleNumber(outcome.JobIndex), outcome.Err)
		case driver.DryRun:
			utils.PrintMessage("Wrote chain step %s script to %s (not submitted)",
				utils.StyleNumber(outcome.JobIndex), utils.StylePath(outcome.MainPath))
		case outcome.JobIndex == 0:
			utils.PrintSuccess("Submitted job %s", utils.StyleNumber(outcome.JobID))
		default:
			utils.PrintSuccess("Submitted job %s as chain step %s",
				utils.StyleNumber(outcome.JobID), utils.StyleNumber(outcome.JobIndex))
		}
	}
	if err != nil {
		utils.PrintWarning("Stopping the submission of subsequent resume jobs due to an error.")
		return err
	}
	return nil
}
