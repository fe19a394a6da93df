package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aimat-lab/AutoSlurm/internal/plan"
	"github.com/aimat-lab/AutoSlurm/internal/utils"
)

//go:embed defaults/*.yaml
var defaultConfigs embed.FS

// GeneralConfigName is the file name (without extension) of the
// environment-wide config holding global fillers and hostname mappings.
const GeneralConfigName = "general_config"

var (
	// ErrConfigNotFound indicates no job config with the given name exists
	ErrConfigNotFound = errors.New("no job config with this name")

	// ErrNoHostnameMatch indicates no hostname mapping matched
	ErrNoHostnameMatch = errors.New("no config specified and no hostname mapping matched")

	// ErrAmbiguousHostname indicates multiple hostname mappings matched
	ErrAmbiguousHostname = errors.New("multiple hostname mappings match this host")
)

// JobConfig is one named submission template: the script preamble, its
// default filler values, and the resource-fit fields. Exactly one of
// MaxTasks or the NumGPUs/GPUsPerTask pair must be set.
type JobConfig struct {
	Template       string            `yaml:"template"`
	DefaultFillers map[string]string `yaml:"default_fillers"`
	NumGPUs        *int              `yaml:"num_gpus"`
	MaxTasks       *int              `yaml:"max_tasks"`
	GPUsPerTask    *int              `yaml:"gpus_per_task"`
}

// Constraint converts the resource-fit fields into a planner constraint.
func (c *JobConfig) Constraint() plan.Constraint {
	return plan.Constraint{
		MaxTasks:    c.MaxTasks,
		NumGPUs:     c.NumGPUs,
		GPUsPerTask: c.GPUsPerTask,
	}
}

// Validate checks the resource-fit fields before any job is built.
func (c *JobConfig) Validate() error {
	return c.Constraint().Validate()
}

// GeneralConfig holds environment-wide settings shared by all job configs.
type GeneralConfig struct {
	HostnameConfigMappings map[string]string `yaml:"hostname_config_mappings"`
	GlobalFillers          map[string]string `yaml:"global_fillers"`
}

// ResolveConfigForHostname matches hostname against the mapping keys
// (treated as regular expressions) and returns the mapped config name.
// Zero matches and multiple matches are both configuration errors.
func (g *GeneralConfig) ResolveConfigForHostname(hostname string) (string, error) {
	var matched []string
	for pattern, configName := range g.HostnameConfigMappings {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", fmt.Errorf("invalid hostname pattern %q: %w", pattern, err)
		}
		if loc := re.FindStringIndex(hostname); loc != nil && loc[0] == 0 {
			matched = append(matched, configName)
		}
	}

	switch len(matched) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrNoHostnameMatch, hostname)
	case 1:
		return matched[0], nil
	default:
		sort.Strings(matched)
		return "", fmt.Errorf("%w: %q matches %v", ErrAmbiguousHostname, hostname, matched)
	}
}

// SeedUserConfigs writes the embedded default config files into the user
// config directory on first run, so users have something to edit. Existing
// files are never overwritten.
func SeedUserConfigs() error {
	if Global.ConfigsDir == "" {
		return nil
	}
	if err := utils.EnsureDir(Global.ConfigsDir); err != nil {
		return err
	}

	entries, err := defaultConfigs.ReadDir("defaults")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		target := filepath.Join(Global.ConfigsDir, entry.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		}
		data, err := defaultConfigs.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, utils.PermFile); err != nil {
			return err
		}
		utils.PrintDebug("Seeded default config: %s", utils.StylePath(target))
	}
	return nil
}

// ListConfigPaths discovers all job config YAML files, keyed by config name
// (file name without extension). User configs shadow the embedded defaults.
func ListConfigPaths() map[string]string {
	paths := make(map[string]string)

	if entries, err := defaultConfigs.ReadDir("defaults"); err == nil {
		for _, entry := range entries {
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			paths[name] = "defaults/" + entry.Name()
		}
	}

	if Global.ConfigsDir != "" {
		if entries, err := os.ReadDir(Global.ConfigsDir); err == nil {
			for _, entry := range entries {
				ext := filepath.Ext(entry.Name())
				if ext != ".yaml" && ext != ".yml" {
					continue
				}
				name := strings.TrimSuffix(entry.Name(), ext)
				paths[name] = filepath.Join(Global.ConfigsDir, entry.Name())
			}
		}
	}

	return paths
}

// ListConfigs loads every discoverable job config, keyed by name. Files
// that do not parse as job configs are skipped, as is the general config.
// Decoding is lenient here so one broken file does not hide the rest.
func ListConfigs() map[string]*JobConfig {
	configs := make(map[string]*JobConfig)
	for name := range ListConfigPaths() {
		if name == GeneralConfigName {
			continue
		}
		data, err := readConfigFile(name)
		if err != nil {
			continue
		}
		var cfg JobConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			utils.PrintDebug("Skipping config %s: %v", name, err)
			continue
		}
		if cfg.DefaultFillers == nil {
			continue
		}
		configs[name] = &cfg
	}
	return configs
}

// readConfigFile reads a config file either from the user config directory
// or from the embedded defaults.
func readConfigFile(name string) ([]byte, error) {
	if Global.ConfigsDir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(Global.ConfigsDir, name+ext)
			if data, err := os.ReadFile(path); err == nil {
				return data, nil
			}
		}
	}

	if data, err := defaultConfigs.ReadFile("defaults/" + name + ".yaml"); err == nil {
		return data, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
}

// LoadJobConfig loads and validates the named job config. Unknown YAML keys
// are rejected so typos fail loudly instead of silently using defaults.
func LoadJobConfig(name string) (*JobConfig, error) {
	data, err := readConfigFile(name)
	if err != nil {
		return nil, err
	}

	var cfg JobConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %q: %w", name, err)
	}
	if cfg.DefaultFillers == nil {
		cfg.DefaultFillers = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", name, err)
	}
	return &cfg, nil
}

// LoadGeneralConfig loads the environment-wide general config.
func LoadGeneralConfig() (*GeneralConfig, error) {
	data, err := readConfigFile(GeneralConfigName)
	if err != nil {
		return nil, err
	}

	var cfg GeneralConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %q: %w", GeneralConfigName, err)
	}
	if cfg.GlobalFillers == nil {
		cfg.GlobalFillers = make(map[string]string)
	}
	return &cfg, nil
}

// ParseFillerOverrides parses a comma-separated key=value list as passed to
// the --overwrite-fillers flag. Whitespace around keys and values is
// stripped; values may contain '='.
func ParseFillerOverrides(raw string) (map[string]string, error) {
	result := make(map[string]string)
	if raw == "" {
		return result, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid key-value pair %q, expected key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty key in pair %q", pair)
		}
		result[key] = strings.TrimSpace(value)
	}
	return result, nil
}
