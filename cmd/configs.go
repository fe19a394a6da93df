package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aimat-lab/AutoSlurm/internal/config"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Interact with the job config files",
}

var configsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all available job configs",
	Long: `List all available job configs.

Shows every config discovered in the user config directory and the shipped
defaults, together with the time, memory, CPU and GRES filler values it
carries. User configs shadow shipped defaults of the same name.`,
	Example: `  aslurm configs list
  aslurm configs ls`,
	Run: runConfigsList,
}

func init() {
	configsCmd.AddCommand(configsListCmd)
	rootCmd.AddCommand(configsCmd)
}

// fillerOrDash looks up a filler value for display, with "-" for absent keys.
func fillerOrDash(fillers map[string]string, key string) string {
	if value, ok := fillers[key]; ok && value != "" {
		return value
	}
	return "-"
}

func runConfigsList(cmd *cobra.Command, args []string) {
	configs := config.ListConfigs()
	if len(configs) == 0 {
		utils.PrintWarning("No job configs found.")
		return
	}

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	nameWidth := len("Config Name")
	for _, name := range names {
		if len(name) > nameWidth {
			nameWidth = len(name)
		}
	}

	// Structured output, no [ASL] prefix
	fmt.Println("Available job configs:")
	fmt.Printf(" %-*s  %-12s %-8s %-6s %s\n", nameWidth, "Config Name", "Time", "Memory", "CPUs", "GRES")
	for _, name := range names {
		fillers := configs[name].DefaultFillers
		nameField := fmt.Sprintf("%-*s", nameWidth, name)
		fmt.Printf(" %s  %-12s %-8s %-6s %s\n",
			utils.StyleName(nameField),
			fillerOrDash(fillers, "time"),
			fillerOrDash(fillers, "mem"),
			fillerOrDash(fillers, "cpus"),
			fillerOrDash(fillers, "gres"))
	}

	fmt.Println()
	fmt.Printf("Select a config with %s\n", utils.StyleCommand("aslurm -c <name> cmd ..."))
}
