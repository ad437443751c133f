package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "viewfinder",
		Short: "Viewfinder - manual camera control with live frame analysis",
		Long: `Viewfinder streams frames from a capture device, derives per-frame
diagnostics (luminance histogram, focus-peaking overlay), and exposes
manual hardware control over an HTTP API.

Features:
  • Simulated, X11 screen-grab, and GStreamer capture backends
  • Manual ISO, shutter, focus, white balance, and exposure bias
  • Lens selection with wide-angle fallback
  • Per-frame histogram and focus-peaking analyses
  • MJPEG live view with composited peaking overlay
  • Still capture into an on-disk photo library`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/viewfinder/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "capture backend (sim, screen, gst)")

	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
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
