package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CamStreamer configuration",
	Long:  `View and manage CamStreamer configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CamStreamer configuration.`,
	Example: `  # Show configuration as YAML (default)
  camstreamer config show

  # Show configuration as JSON
  camstreamer config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value. Nested keys use dots and the value
is parsed as the type of the existing setting.`,
	Example: `  # Set server port
  camstreamer config set server_port 9090

  # Select the V4L2 controller
  camstreamer config set camera.controller v4l2

  # Disable the motion JPEG routes
  camstreamer config set stream.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Example: `  # Get server port
  camstreamer config get server_port

  # Get the stream quality
  camstreamer config get encoder.stream_quality`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

var formatFlag string

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	v := configMgr.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	parsed, err := parseValue(v.Get(key), value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if key == "log_level" && !validLevels[value] {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
	}
	v.Set(key, parsed)

	if err := configMgr.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Configuration updated: %s = %s\n", key, value)
	return nil
}

// parseValue converts value to the type of the existing setting
func parseValue(existing any, value string) (any, error) {
	switch existing.(type) {
	case int, int64, uint64:
		return strconv.Atoi(value)
	case bool:
		return strconv.ParseBool(value)
	case map[string]any:
		return nil, fmt.Errorf("cannot set a section")
	default:
		return value, nil
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	v := configMgr.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Println(v.Get(key))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(configMgr.GetConfigPath())
	return nil
}
