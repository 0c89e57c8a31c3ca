package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rendis/playbook2uml/internal/diagram"
	"github.com/rendis/playbook2uml/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PLAYBOOK2UML"

// Config holds the settings shared by every playbook2uml command.
// Priority: flags > env vars > settings file > defaults.
type Config struct {
	Type        diagram.DiagramType
	Title       string
	Theme       string
	LeftToRight bool
	Verbose     int
	LogFormat   logging.Format
}

// configFlags maps config keys to the flags that override them.
var configFlags = map[string]string{
	"type":          "type",
	"title":         "title",
	"theme":         "theme",
	"left_to_right": "left-to-right",
	"verbose":       "verbose",
	"log_format":    "log-format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("type", string(diagram.DiagramTypePlantUML))
	v.SetDefault("title", "")
	v.SetDefault("theme", "")
	v.SetDefault("left_to_right", false)
	v.SetDefault("verbose", 0)
	v.SetDefault("log_format", string(logging.FormatText))
}

func playbook2umlDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playbook2uml"
	}
	return filepath.Join(home, ".playbook2uml")
}

func settingsPath() string {
	return filepath.Join(playbook2umlDir(), "settings.yaml")
}

// loadConfig layers defaults, the settings file, PLAYBOOK2UML_* environment
// variables and the flags that were set on the command line. An explicit
// configPath must exist; the default settings file is optional.
func loadConfig(flags *pflag.FlagSet, configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	path, explicit := configPath, configPath != ""
	if !explicit {
		path = settingsPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if explicit || !errors.As(err, &pathErr) {
			return Config{}, newConfigError(fmt.Sprintf("cannot read config file %s", path), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, name := range configFlags {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, newConfigError("cannot bind flag --"+name, err)
			}
		}
	}

	cfg := Config{
		Type:        diagram.DiagramType(strings.ToLower(v.GetString("type"))),
		Title:       v.GetString("title"),
		Theme:       v.GetString("theme"),
		LeftToRight: v.GetBool("left_to_right"),
		Verbose:     min(max(v.GetInt("verbose"), 0), logging.MaxVerbosity),
		LogFormat:   logging.Format(strings.ToLower(v.GetString("log_format"))),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if !slices.Contains(diagram.DiagramTypes(), c.Type) {
		return newConfigError(fmt.Sprintf("invalid diagram type %q (supported: plantuml, mermaid)", c.Type), nil)
	}
	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return newConfigError(fmt.Sprintf("invalid log format %q (supported: text, json)", c.LogFormat), nil)
	}
	return nil
}

// options returns the diagram framing for this configuration.
func (c Config) options(roleOnly bool) diagram.Options {
	return diagram.Options{
		Title:       c.Title,
		Theme:       c.Theme,
		LeftToRight: c.LeftToRight,
		RoleOnly:    roleOnly,
	}
}
