package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oselz/viewfinder/internal/analysis"
	"github.com/oselz/viewfinder/internal/api"
	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/capture"
	"github.com/oselz/viewfinder/internal/config"
	"github.com/oselz/viewfinder/internal/control"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/orientation"
	"github.com/oselz/viewfinder/internal/pipeline"
	"github.com/oselz/viewfinder/internal/session"
	"github.com/oselz/viewfinder/internal/state"
	"github.com/oselz/viewfinder/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viewfinder server",
	Long: `Start the capture session, the analysis pipeline, and the HTTP API.

The session opens the configured default device, streams frames through
the analysis pipeline, and publishes state for the control surface.`,
	Example: `  # Start with the simulated backend on the default port
  viewfinder serve

  # Stream a real camera through GStreamer
  viewfinder serve --backend gst

  # Start with debug logging
  viewfinder serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	if viper.IsSet("server_port") && viper.GetInt("server_port") > 0 {
		configMgr.SetPort(viper.GetInt("server_port"))
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		configMgr.SetLogLevel(viper.GetString("log_level"))
	}
	if viper.IsSet("backend") && viper.GetString("backend") != "" {
		configMgr.SetBackend(viper.GetString("backend"))
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("serve")

	opener, err := newOpener(cfg.Camera)
	if err != nil {
		return err
	}

	pos, ok := camera.ParsePosition(cfg.Camera.Position)
	if !ok {
		pos = camera.PositionBack
	}
	class, ok := camera.ParseFocalClass(cfg.Camera.Class)
	if !ok {
		class = camera.ClassWide
	}

	lib, err := storage.NewLibrary(afero.NewOsFs(), cfg.LibraryDir)
	if err != nil {
		return fmt.Errorf("failed to open photo library: %w", err)
	}

	store := state.NewStore()
	pipe := pipeline.NewCoordinator(store, analysis.PeakingOptions{
		Blur:      cfg.Analysis.PeakingBlur,
		Threshold: cfg.Analysis.PeakingThreshold,
	})
	facade := control.NewFacade(opener, store)
	live := api.NewLiveStream(store, cfg.Camera.FPS)

	ctrl := session.NewController(session.Options{
		Store:        store,
		Facade:       facade,
		Pipeline:     pipe,
		Capture:      capture.NewCoordinator(lib),
		Live:         live,
		DefaultPos:   pos,
		DefaultClass: class,
	})

	sensor := orientation.NewSensor(store, nil, nil, orientation.DefaultInterval)
	sensor.Start()
	defer sensor.Stop()

	ctrl.SetAnalysisEnablement(cfg.Analysis.Histogram, cfg.Analysis.Peaking)
	ctrl.Start()
	defer ctrl.Shutdown()

	server := api.NewServer(store, ctrl, live)
	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("backend", opener.Name()).
		Str("library", lib.Dir()).
		Msg("Viewfinder is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	return nil
}
