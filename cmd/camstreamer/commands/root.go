package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

var (
	cfgFile   string
	logPretty bool
	rootCmd   = &cobra.Command{
		Use:   "camstreamer",
		Short: "CamStreamer - Serve a CSI camera as JPEG snapshots and MJPEG streams",
		Long: `CamStreamer drives an image sensor and its CSI capture controller,
keeps the latest frame in a small ring of buffers and serves it over HTTP.

Features:
  • Sensor drivers over I2C (sc202cs, ov5647) and a synthetic test pattern
  • Simulated, GStreamer and V4L2 capture controllers
  • Single-frame JPEG snapshots and motion JPEG streams
  • WebSocket delivery of the same routes under /ws
  • Optional local display in an X11 window
  • Persistent YAML configuration`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/camstreamer/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "human-readable console logs")

	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	level := viper.GetString("log_level")
	if level == "" {
		level = "info"
	}
	logger.Init(level, logPretty)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config manager and applies flag overrides
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if port := viper.GetInt("server_port"); port > 0 {
		configMgr.SetPort(port)
	}
	if level := viper.GetString("log_level"); level != "" {
		configMgr.SetLogLevel(level)
	}
	return configMgr, nil
}
