package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/eyes-gesture/eyes-client/internal/api"
	"github.com/eyes-gesture/eyes-client/internal/config"
	"github.com/eyes-gesture/eyes-client/internal/control"
	"github.com/eyes-gesture/eyes-client/internal/dashboard"
	"github.com/eyes-gesture/eyes-client/internal/models"
	eyestls "github.com/eyes-gesture/eyes-client/internal/tls"
	"github.com/eyes-gesture/eyes-client/internal/version"
	"github.com/eyes-gesture/eyes-client/pkg/console"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

func main() {
	fs := pflag.NewFlagSet("eyes", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	headless := fs.Bool("headless", false, "print status lines instead of the dashboard")
	startDetection := fs.Bool("start", false, "ask the backend to start detection on launch")
	showVersion := fs.Bool("version", false, "print the version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Println(version.UserAgent())
		return
	}

	cfg, err := config.Load(fs)
	if err != nil {
		console.Error("%v", err)
		os.Exit(1)
	}

	logFile, err := setupLogging(cfg, *headless)
	if err != nil {
		console.Error("%v", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	tlsConfig, err := eyestls.ClientConfig(cfg.CAFile)
	if err != nil {
		console.Error("%v", err)
		os.Exit(1)
	}

	urls := config.NewURLConfig(cfg)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	if tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		httpClient.Transport = transport
	}
	ctrl, err := control.New(control.Deps{
		Config:    cfg,
		API:       api.NewClientWithDoer(urls.GetAPIBaseURL(), httpClient),
		TLSConfig: tlsConfig,
	})
	if err != nil {
		console.Error("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.Start(ctx)
	defer ctrl.Close()

	if *startDetection {
		if err := ctrl.StartDetection(ctx); err != nil {
			console.Warning("%v", err)
		}
	}

	if *headless {
		runHeadless(ctx, ctrl, cfg.PollInterval)
		return
	}

	program := tea.NewProgram(dashboard.New(ctrl, dashboard.DefaultRefresh), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		debug.Error("Dashboard exited: %v", err)
		os.Exit(1)
	}
}

// setupLogging routes debug output. The dashboard owns the terminal, so
// without a log file it discards log lines.
func setupLogging(cfg *config.Config, headless bool) (*os.File, error) {
	if cfg.LogFile == "" {
		if !headless {
			debug.SetOutput(io.Discard)
		}
		return nil, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	debug.SetOutput(f)
	return f, nil
}

// runHeadless prints connection changes and gestures as they happen plus a
// periodic telemetry line
func runHeadless(ctx context.Context, ctrl *control.Controller, every time.Duration) {
	console.Info("EYES %s, backend %s", version.GetVersion(), ctrl.Snapshot().Backend)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var (
		lastState   = models.ConnectionState(-1)
		lastGesture time.Time
		lastLine    time.Time
	)
	for {
		select {
		case <-ctx.Done():
			console.Print("")
			console.Info("Shutting down")
			return
		case <-ticker.C:
		}

		snap := ctrl.Snapshot()
		conn := snap.Connection

		if conn.State != lastState {
			lastState = conn.State
			switch conn.State {
			case models.Open:
				console.Success("Stream open (session %s)", conn.SessionID)
			case models.Closed:
				console.Warning("Stream closed")
			default:
				console.Status("Stream %s", conn.State)
			}
		}

		if conn.Gesture != nil && !conn.GestureShownAt.Equal(lastGesture) {
			lastGesture = conn.GestureShownAt
			console.Success("Gesture %s", conn.Gesture)
		}

		if time.Since(lastLine) >= every {
			lastLine = time.Now()
			tel := snap.Telemetry
			online := "offline"
			if tel.Connected {
				online = "online"
			}
			console.Live("backend %s | running %t | fps %.1f | volume %s | brightness %s",
				online, tel.IsRunning, tel.FPS, console.Gauge(tel.Volume, 10), console.Gauge(tel.Brightness, 10))
		}
	}
}
