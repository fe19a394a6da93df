package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aimat-lab/AutoSlurm/internal/config"
	"github.com/aimat-lab/AutoSlurm/internal/scheduler"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
	"github.com/spf13/cobra"
)

var (
	debugMode  bool
	quietMode  bool
	dryRunMode bool

	configName       string
	overwriteFillers string

	gpusPerTaskFlag int
	numGPUsFlag     int
	maxTasksFlag    int
)

var rootCmd = &cobra.Command{
	Use:           "aslurm",
	Short:         "AutoSlurm: Write sbatch scripts from templates, pack tasks into jobs, and submit them for you.",
	Version:       config.VERSION,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Step 1: Load defaults (paths, directories, etc.)
		config.LoadDefaults()

		// Step 2: Initialize Viper (read config file, env vars)
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}

		// Step 3: Auto-detect the scheduler binary if needed and save to config
		updated, err := config.AutoDetectAndSave()
		if err != nil {
			utils.PrintDebug("Failed to save config: %v", err)
		} else if updated {
			if configPath, err := config.GetUserConfigPath(); err == nil {
				utils.PrintDebug("Auto-detected scheduler binary saved to: %s", configPath)
			}
		}

		// Step 4: Load detected values from Viper into Global config
		config.LoadFromViper()

		// Step 5: Seed the user config directory with the shipped defaults
		if err := config.SeedUserConfigs(); err != nil {
			utils.PrintDebug("Failed to seed default configs: %v", err)
		}

		// Step 6: Apply command-line flags (highest priority)
		if debugMode {
			utils.DebugMode = true
			config.Global.Debug = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("AutoSlurm Version: %s", utils.StyleInfo(config.VERSION))
			utils.PrintDebug("Configs Directory: %s", config.Global.ConfigsDir)
			utils.PrintDebug("Resume Directory: %s", config.Global.ResumeDir)
			if config.Global.SchedulerBin != "" {
				utils.PrintDebug("Scheduler Binary: %s", config.Global.SchedulerBin)
			}
		}
		if quietMode {
			utils.QuietMode = true
			config.Global.Quiet = true
		}
		if dryRunMode {
			config.Global.SubmitJob = false
			utils.PrintDebug("Dry run enabled (job submission disabled)")
		}

		// Step 7: Initialize the scheduler if job submission is enabled
		if config.Global.SubmitJob && config.Global.SchedulerBin != "" {
			sched, err := scheduler.Detect(config.Global.SchedulerBin)
			if err == nil && sched.IsAvailable() {
				scheduler.SetActive(sched)
				utils.PrintDebug("Scheduler initialized and available")
			} else {
				if err != nil {
					utils.PrintDebug("Scheduler not available: %v", err)
				} else {
					utils.PrintDebug("Scheduler not available (already in a job)")
				}
			}
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra's automatic error printing is silenced. For submission errors
		// print only the captured sbatch output (trimmed) and exit with
		// non-zero status. For other errors, print the default error string.
		var se *scheduler.SubmissionError
		if errors.As(err, &se) {
			out := strings.TrimSpace(se.Output)
			if out != "" {
				fmt.Fprintln(os.Stderr, out)
			}
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().BoolVarP(&dryRunMode, "dry-run", "d", false, "Write job scripts but do not submit them")

	rootCmd.PersistentFlags().StringVarP(&configName, "config", "c", "", "Name of the job config to use (without the .yaml extension)")
	rootCmd.PersistentFlags().StringVarP(&overwriteFillers, "overwrite-fillers", "o", "", "Overwrite default filler values (format: key1=value1,key2=value2)")

	rootCmd.PersistentFlags().IntVar(&gpusPerTaskFlag, "gpus-per-task", -1, "GPUs to assign to each task (overrides the job config)")
	rootCmd.PersistentFlags().IntVar(&numGPUsFlag, "num-gpus", -1, "Total GPUs per job (overrides the job config)")
	rootCmd.PersistentFlags().IntVar(&maxTasksFlag, "max-tasks", -1, "Maximum tasks per job (overrides the job config)")
}
