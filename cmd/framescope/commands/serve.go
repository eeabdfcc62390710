package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/framescope/framescope/internal/api"
	"github.com/framescope/framescope/internal/config"
	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
	"github.com/framescope/framescope/internal/output"
	"github.com/framescope/framescope/internal/sched"
	"github.com/framescope/framescope/internal/stats"
	"github.com/pkg/errors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the framescope server",
	Long: `Start the framescope HTTP server and capture pipeline.

Capture and recording are driven through the REST API; the live view is
served as an MJPEG stream at /stream.`,
	Example: `  # Start server on default port (8080)
  framescope serve

  # Start server on custom port with debug logging
  framescope serve --port 9090 --log-level debug

  # Start with a specific config file
  framescope serve --config /path/to/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return errors.Wrap(err, "initialize config manager")
	}

	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	log := logger.WithComponent("serve")
	log.Info().Str("config", configMgr.GetConfigPath()).Msg("Configuration loaded")

	var slot frame.Latest

	scheduler := sched.New(&slot, sched.Options{
		Period:          time.Duration(cfg.Capture.PeriodMS) * time.Millisecond,
		InitialCapacity: cfg.Recording.InitialCapacity,
		ChunkSize:       cfg.Recording.ChunkSize,
	})
	defer scheduler.StopCapture()

	roiSet := stats.NewSet()
	if cfg.ROIFile != "" {
		if err := roiSet.LoadFile(cfg.ROIFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.ROIFile).Msg("Could not load ROI file")
		}
	}

	collector := stats.NewCollector(&slot, roiSet, 0)
	collector.Start()
	defer collector.Stop()

	stream := output.NewMJPEG(&slot, output.Config{FPS: 10})
	if err := stream.Start(); err != nil {
		return errors.Wrap(err, "start MJPEG output")
	}
	defer stream.Stop()

	server := api.NewServer(scheduler, configMgr, &slot, roiSet, collector, stream)
	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().
		Int("port", cfg.ServerPort).
		Str("source", string(cfg.Capture.Source)).
		Msg("Framescope is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	return nil
}
