package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/russellballestrini/tpmjs-sub004/internal/bridge"
	"github.com/russellballestrini/tpmjs-sub004/internal/catalog"
	"github.com/russellballestrini/tpmjs-sub004/internal/executor"
	"github.com/russellballestrini/tpmjs-sub004/internal/gateway"
	"github.com/russellballestrini/tpmjs-sub004/internal/mcp"
)

// newServeCmd creates the "serve" subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("seed", "", "Path to a YAML catalog seed file")
	cmd.Flags().String("executor-url", "", "Executor endpoint for collections without one of their own")
	cmd.Flags().String("executor-token", "", "Bearer token for the default executor (or TPMJS_EXECUTOR_TOKEN)")
	cmd.Flags().Duration("call-timeout", gateway.DefaultCallTimeout, "How long a bridge call waits for its result")
	cmd.Flags().Duration("staleness-window", gateway.DefaultStalenessWindow, "How long after the last heartbeat a bridge still takes calls")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 320*time.Second, "HTTP write timeout")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	seedPath, _ := cmd.Flags().GetString("seed")
	callTimeout, _ := cmd.Flags().GetDuration("call-timeout")
	stalenessWindow, _ := cmd.Flags().GetDuration("staleness-window")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")

	log, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	// A bridge call can legitimately block its HTTP response for the full
	// call timeout, so the write timeout must leave room beyond it.
	if writeTimeout > 0 && writeTimeout <= callTimeout {
		log.Warn("Write timeout does not exceed the call timeout; long bridge calls will be cut off",
			"write_timeout", writeTimeout,
			"call_timeout", callTimeout,
		)
	}

	cat, err := loadCatalog(cmd, seedPath, log)
	if err != nil {
		return err
	}

	conns := bridge.NewMemoryConnectionStore()

	relay := bridge.NewRelay(log)
	defer relay.Close()

	router := gateway.NewRouter(log, gateway.RouterConfig{
		Catalog:         cat,
		Connections:     conns,
		Relay:           relay,
		Executor:        executor.NewHTTPExecutor(log, nil),
		CallTimeout:     callTimeout,
		StalenessWindow: stalenessWindow,
	})

	dispatcher := gateway.NewDispatcher(log, cat, conns, router, mcp.Implementation{
		Name:    "tpmjs-gateway",
		Version: version,
	})

	mux := http.NewServeMux()
	gateway.NewServer(log, dispatcher).Register(mux)
	bridge.NewPollerAPI(log, relay, conns).Register(mux)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Gateway listening", "addr", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		log.Info("Shutting down")

		// Closing the relay first unblocks in-flight bridge calls so
		// Shutdown can drain their handlers without waiting out the
		// call timeout.
		relay.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildLogger constructs the process logger from the log-level flag.
func buildLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadCatalog builds the catalog from the seed file, or starts empty when
// no seed is given. Collections without an executor endpoint fall back to
// the one configured on the command line.
func loadCatalog(cmd *cobra.Command, seedPath string, log *slog.Logger) (*catalog.Memory, error) {
	var mem *catalog.Memory

	if seedPath == "" {
		log.Warn("No catalog seed provided, starting with an empty catalog")
		mem = catalog.NewMemory()
	} else {
		var err error

		mem, err = catalog.Load(seedPath)
		if err != nil {
			return nil, err
		}

		log.Info("Catalog seeded", "path", seedPath, "collections", mem.CollectionCount())
	}

	if filled := mem.FillExecutorDefaults(resolveExecutorConfig(cmd)); filled > 0 {
		log.Info("Applied default executor config", "collections", filled)
	}

	return mem, nil
}

// resolveExecutorConfig reads the default executor endpoint from flags,
// with the token falling back to the TPMJS_EXECUTOR_TOKEN environment
// variable.
func resolveExecutorConfig(cmd *cobra.Command) catalog.ExecutorConfig {
	url, _ := cmd.Flags().GetString("executor-url")
	token, _ := cmd.Flags().GetString("executor-token")

	if token == "" {
		token = strings.TrimSpace(os.Getenv("TPMJS_EXECUTOR_TOKEN"))
	}

	return catalog.ExecutorConfig{URL: url, Token: token}
}
