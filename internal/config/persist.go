package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/aimat-lab/AutoSlurm/internal/scheduler"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (ASLURM_*)
// 3. User config file (~/.config/aslurm/config.yaml)
// 4. System config file (/etc/aslurm/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	// Set config search paths (order matters)
	// User config (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "aslurm"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".aslurm"))
	}

	// System-wide config (lower priority)
	viper.AddConfigPath("/etc/aslurm")

	// Current directory (for development)
	viper.AddConfigPath(".")

	// Environment variables
	viper.SetEnvPrefix("ASLURM")
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; will use defaults and auto-detect
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("scheduler_bin", "")
	viper.SetDefault("dependency_mode", "aftercorr")
	viper.SetDefault("submit_job", true)
	viper.SetDefault("resume_dir", ".aslurm")
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".aslurm", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "aslurm", ConfigFilename+"."+ConfigType), nil
}

// SaveConfig saves current Viper config to user config file
func SaveConfig() error {
	configPath, err := GetUserConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateBinary checks if a binary exists and is executable
func ValidateBinary(binPath string) bool {
	if binPath == "" {
		return false
	}

	// If it's a full path, check directly
	if filepath.IsAbs(binPath) {
		info, err := os.Stat(binPath)
		if err != nil {
			return false
		}
		// Check if it's executable (unix-style check)
		return info.Mode()&0111 != 0
	}

	// Otherwise, try to find it in PATH
	_, err := exec.LookPath(binPath)
	return err == nil
}

// DetectSchedulerBin attempts to find the scheduler submission binary.
// Returns the full absolute path if found, empty string otherwise.
func DetectSchedulerBin() string {
	path, _ := scheduler.LookupSubmitBin()
	return path
}

// AutoDetectAndSave auto-detects the scheduler binary and saves it to the
// config if needed. Returns true if the config was updated.
func AutoDetectAndSave() (bool, error) {
	schedulerBin := viper.GetString("scheduler_bin")
	if ValidateBinary(schedulerBin) {
		return false, nil
	}

	detected := DetectSchedulerBin()
	if detected == "" {
		return false, nil
	}

	viper.Set("scheduler_bin", detected)
	if err := SaveConfig(); err != nil {
		return false, err
	}
	return true, nil
}

// LoadFromViper loads config from Viper into the Global struct
func LoadFromViper() {
	if bin := viper.GetString("scheduler_bin"); bin != "" {
		Global.SchedulerBin = bin
	}

	if mode := viper.GetString("dependency_mode"); mode != "" {
		Global.DependencyMode = mode
	}

	if submitJob := viper.GetBool("submit_job"); !submitJob {
		Global.SubmitJob = submitJob
	}

	if dir := viper.GetString("resume_dir"); dir != "" {
		Global.ResumeDir = dir
	}
}
