package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"crack-watch/config"
	"crack-watch/internal/container"
	"crack-watch/internal/logging"
)

// CLI flags, перекрывают переменные окружения
var (
	captureDirFlag string
	outputDirFlag  string
	logFileFlag    string
	addrFlag       string
	logLevelFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "crack-watch",
	Short: "Railway crack detection pipeline",
	Long: `crack-watch watches the directory the track camera writes frames into,
runs every new frame through the crack detection model, keeps annotated
frames and a JSON detection log, and alerts the operator over Telegram.

Examples:
  crack-watch detect
  crack-watch detect --capture-dir /data/camera
  crack-watch serve --addr :8080
  crack-watch run
  crack-watch latest`,
	SilenceUsage: true,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Process new camera frames until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), runDetect)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), runServe)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run detection and the dashboard together",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return runDetect(ctx, c) })
			g.Go(func() error { return runServe(ctx, c) })
			return g.Wait()
		})
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the latest detection log entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
			raw, ok := c.DetectionLog.LatestRaw(ctx)
			if !ok {
				raw = []byte("{}")
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&captureDirFlag, "capture-dir", "", "Directory the camera writes frames into (CAPTURE_DIR)")
	rootCmd.PersistentFlags().StringVar(&outputDirFlag, "output-dir", "", "Directory for annotated frames (OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Detection log file (LOG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn, error (LOG_LEVEL)")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Dashboard listen address (DASHBOARD_ADDR)")
	runCmd.Flags().StringVar(&addrFlag, "addr", "", "Dashboard listen address (DASHBOARD_ADDR)")

	rootCmd.AddCommand(detectCmd, serveCmd, runCmd, latestCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("crack-watch failed")
		stop()
		os.Exit(1)
	}
}

// withContainer загружает конфигурацию, настраивает логгер и собирает зависимости.
func withContainer(ctx context.Context, fn func(context.Context, *container.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg)

	logging.Init(cfg.LogLevel, cfg.LogFormat)

	c := container.New(cfg)
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not release detector")
		}
	}()

	return fn(ctx, c)
}

func applyFlags(cfg *config.Config) {
	if captureDirFlag != "" {
		cfg.CaptureDir = captureDirFlag
	}
	if outputDirFlag != "" {
		cfg.OutputDir = outputDirFlag
	}
	if logFileFlag != "" {
		cfg.LogFile = logFileFlag
	}
	if addrFlag != "" {
		cfg.DashboardAddr = addrFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
}

func runDetect(ctx context.Context, c *container.Container) error {
	loop, err := c.IngestionLoop()
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}

func runServe(ctx context.Context, c *container.Container) error {
	return c.Dashboard().Run(ctx)
}
