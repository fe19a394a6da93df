package config

import (
	"os"
	"path/filepath"
)

const VERSION = "0.3.0"

// Config holds global application settings
type Config struct {
	Debug          bool
	Quiet          bool
	SubmitJob      bool
	Version        string
	SchedulerBin   string
	DependencyMode string
	ConfigsDir     string // user job-config directory
	ResumeDir      string // where generated scripts and resume files live
}

// Global holds the singleton configuration instance
var Global Config

// LoadDefaults initializes Global with built-in defaults. Viper values and
// command-line flags are layered on top afterwards.
func LoadDefaults() {
	configsDir := ""
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		configsDir = filepath.Join(userConfigDir, "aslurm", "configs")
	}

	Global = Config{
		Debug:          false,
		Quiet:          false,
		SubmitJob:      true,
		Version:        VERSION,
		SchedulerBin:   "",
		DependencyMode: "aftercorr",
		ConfigsDir:     configsDir,
		ResumeDir:      ".aslurm",
	}
}
