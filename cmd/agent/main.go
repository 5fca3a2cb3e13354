package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/rtr-labs/repaircam/internal/capture"
	"github.com/rtr-labs/repaircam/internal/stream"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const version = "0.1.0"

type agentConfig struct {
	Server    string        `yaml:"server"`
	SessionID string        `yaml:"session_id"`
	Source    string        `yaml:"source"`
	Interval  time.Duration `yaml:"interval"`
	Threshold int           `yaml:"threshold"`
	Lenient   bool          `yaml:"lenient"`
	Quality   int           `yaml:"jpeg_quality"`
	LogLevel  string        `yaml:"log_level"`
}

func defaultConfig() agentConfig {
	return agentConfig{
		Server:    "ws://localhost:8080/ws/vision",
		Interval:  3 * time.Second,
		Threshold: capture.DefaultThreshold,
		Quality:   85,
		LogLevel:  "info",
	}
}

func loadProfile(path string, cfg *agentConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	cfg := defaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:   "repaircam-agent",
		Short: "Capture agent that streams quality-gated camera frames for live detection",
		Long: `The agent grabs frames from a camera source, scores each one for
brightness, contrast, sharpness and stability, and streams the frames that
pass the quality gate to the detection server over a WebSocket.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if configPath == "" {
				return nil
			}
			// Profile values fill in anything not set explicitly on the
			// command line; flags win.
			profile := cfg
			if err := loadProfile(configPath, &profile); err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("server") {
				cfg.Server = profile.Server
			}
			if !flags.Changed("session") {
				cfg.SessionID = profile.SessionID
			}
			if !flags.Changed("source") {
				cfg.Source = profile.Source
			}
			if !flags.Changed("interval") {
				cfg.Interval = profile.Interval
			}
			if !flags.Changed("threshold") {
				cfg.Threshold = profile.Threshold
			}
			if !flags.Changed("lenient") {
				cfg.Lenient = profile.Lenient
			}
			if !flags.Changed("jpeg-quality") {
				cfg.Quality = profile.Quality
			}
			cfg.LogLevel = profile.LogLevel
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Server, "server", cfg.Server, "detection server WebSocket URL")
	flags.StringVar(&cfg.SessionID, "session", cfg.SessionID, "chat session to attach detections to")
	flags.StringVar(&cfg.Source, "source", cfg.Source, "MJPEG stream URL or directory of images")
	flags.DurationVar(&cfg.Interval, "interval", cfg.Interval, "capture interval")
	flags.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "minimum quality score to send a frame")
	flags.BoolVar(&cfg.Lenient, "lenient", cfg.Lenient, "use the lenient quality threshold for poor lighting")
	flags.IntVar(&cfg.Quality, "jpeg-quality", cfg.Quality, "JPEG encode quality")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML profile; explicit flags take precedence")

	return cmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newSource(target string) (capture.Source, error) {
	if target == "" {
		return nil, fmt.Errorf("--source is required (MJPEG URL or image directory)")
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return capture.NewMJPEGSource(target, &http.Client{}), nil
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", target, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a directory or URL", target)
	}
	return capture.NewDirectorySource(target), nil
}

func runAgent(ctx context.Context, cfg agentConfig) error {
	logger := newLogger(cfg.LogLevel)

	source, err := newSource(cfg.Source)
	if err != nil {
		return err
	}

	threshold := cfg.Threshold
	if cfg.Lenient {
		threshold = capture.LenientThreshold
	}

	done := make(chan struct{})
	var finish sync.Once
	var loop *capture.Loop

	client := stream.NewClient(stream.ClientConfig{
		URL:    cfg.Server,
		Logger: logger,
		OnResult: func(msg *stream.ServerMessage) {
			switch msg.Type {
			case stream.TypeToken:
				fmt.Print(msg.Token)
			case stream.TypeProcessingStarted:
				fmt.Println("analyzing frame...")
			case stream.TypeDropped:
				logger.Debug("frame dropped by server", "reason", msg.Reason)
			case stream.TypeLowConfidence:
				fmt.Printf("\nlow confidence (%d%%), adjust the camera and try again\n",
					stream.PercentConfidence(msg.Confidence))
			case stream.TypeComplete:
				fmt.Println()
				printResult(msg)
				loop.Stop()
				finish.Do(func() { close(done) })
			case stream.TypeError:
				fmt.Printf("\ndetection error: %s\n", msg.Message)
			}
		},
	})

	loop = capture.NewLoop(capture.LoopConfig{
		Source:      source,
		Interval:    cfg.Interval,
		Threshold:   threshold,
		JPEGQuality: cfg.Quality,
		Logger:      logger,
		OnFrame: func(frame capture.EncodedFrame) {
			// Read the live connection state here, not at setup time.
			if !client.Connected() || client.Processing() {
				return
			}
			logger.Debug("sending frame",
				"score", frame.Metrics.Score,
				"feedback", frame.Metrics.Feedback)
			if err := client.SendFrame(frame.Data, cfg.SessionID); err != nil {
				logger.Warn("send failed", "error", err)
			}
		},
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Server, err)
	}
	defer client.Disconnect()

	if err := loop.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer loop.Stop()

	logger.Info("streaming",
		"server", cfg.Server,
		"source", cfg.Source,
		"interval", cfg.Interval,
		"threshold", threshold)

	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return nil
	}
}

func printResult(msg *stream.ServerMessage) {
	if msg.Result == nil {
		return
	}
	r := msg.Result
	fmt.Printf("detected: %s\n", r.Object)
	if r.Brand != "" {
		fmt.Printf("  brand:     %s\n", r.Brand)
	}
	if r.Model != "" {
		fmt.Printf("  model:     %s\n", r.Model)
	}
	fmt.Printf("  condition: %s\n", r.Condition)
	for _, issue := range r.Issues {
		fmt.Printf("  issue:     %s\n", issue)
	}
	if r.Description != "" {
		fmt.Printf("  %s\n", r.Description)
	}
	fmt.Printf("  confidence: %d%%\n", stream.PercentConfidence(msg.Confidence))
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
