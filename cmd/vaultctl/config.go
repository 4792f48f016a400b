package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds vaultctl settings from flags, VAULTFS_* variables and an
// optional vaultctl.yaml
type Config struct {
	Verbose    bool   `mapstructure:"verbose" yaml:"verbose"`
	Output     string `mapstructure:"output" yaml:"output"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	Keyring    bool   `mapstructure:"keyring" yaml:"keyring"`
	Cipher     string `mapstructure:"cipher" yaml:"cipher"`
	KeyMode    string `mapstructure:"key_mode" yaml:"key_mode"`
	Iterations uint32 `mapstructure:"iterations" yaml:"iterations"`
	BlockSize  int    `mapstructure:"block_size" yaml:"block_size"`
	Workers    int    `mapstructure:"workers" yaml:"workers"`
}

var defaults = map[string]any{
	"output":     "text",
	"log_level":  "warn",
	"cipher":     "aes-xts",
	"key_mode":   "pbkdf2",
	"iterations": 100000,
	"block_size": 4096,
	"workers":    0,
}

// configDir returns the per-user directory searched for vaultctl.yaml
func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(dir, "vaultctl"), nil
}

// LoadConfig merges defaults, the config file, the environment and the
// command flags, in increasing precedence
func LoadConfig(cmd *cobra.Command, path string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("vaultctl")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.SetEnvPrefix("vaultfs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return c, bindErr
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	switch c.Output {
	case "text", "json", "yaml":
	default:
		return c, fmt.Errorf("unknown output format %q", c.Output)
	}
	return c, nil
}
