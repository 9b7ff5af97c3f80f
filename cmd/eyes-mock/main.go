package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/mockbackend"
	eyestls "github.com/eyes-gesture/eyes-client/internal/tls"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
	"github.com/eyes-gesture/eyes-client/pkg/env"
)

func main() {
	// Initialize debug package first with default settings
	debug.Reinitialize()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		debug.Warning("Failed to load .env file: %v", err)
	}
	debug.Reinitialize()

	fs := pflag.NewFlagSet("eyes-mock", pflag.ContinueOnError)
	host := fs.String("host", env.GetOrDefault("EYES_MOCK_HOST", "localhost"), "address to listen on")
	port := fs.Int("port", env.GetIntOrDefault("EYES_MOCK_PORT", 8000), "port to listen on")
	fps := fs.Float64("fps", 15, "synthetic frame rate")
	autostart := fs.Bool("running", false, "start with detection running")
	useTLS := fs.Bool("tls", env.GetBoolOrDefault("EYES_MOCK_TLS", false), "serve https and wss with a self-signed certificate")
	certFile := fs.String("cert", env.GetOrDefault("EYES_MOCK_CERT", "eyes-mock.crt"), "certificate path, created if missing")
	keyFile := fs.String("key", env.GetOrDefault("EYES_MOCK_KEY", "eyes-mock.key"), "private key path, created if missing")
	corsOrigin := fs.String("cors-origin", env.GetOrDefault("EYES_MOCK_CORS_ORIGIN", "*"), "allowed browser origin")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	backend := mockbackend.New(clock.Real())
	backend.SetCORSOrigin(*corsOrigin)
	if *autostart {
		if err := backend.Start(); err != nil {
			debug.Error("Failed to start detection: %v", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go backend.RunEmitter(ctx, *fps)

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	server := &http.Server{
		Addr:              addr,
		Handler:           backend.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		debug.Info("Shutting down mock backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		backend.DisconnectAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			debug.Error("Shutdown failed: %v", err)
		}
	}()

	if *useTLS {
		cert, err := eyestls.LoadOrCreate(*certFile, *keyFile, []string{*host, "localhost", "127.0.0.1"})
		if err != nil {
			debug.Error("Failed to prepare certificate: %v", err)
			os.Exit(1)
		}
		server.TLSConfig = eyestls.ServerConfig(cert)
		debug.Info("Clients can trust %s with --ca-file", *certFile)
	}

	debug.Info("Starting mock EYES backend on %s (tls=%t)", addr, *useTLS)
	var err error
	if *useTLS {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		debug.Error("Server failed to start: %v", err)
		os.Exit(1)
	}
}
