// Command mcgravity runs the MCP aggregator: it fronts one exposed MCP
// server for any number of upstream MCP servers, discovering and
// re-advertising their tools, resources and prompts.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	"github.com/mcgravity/mcgravity/composer"
	"github.com/mcgravity/mcgravity/httpfrontend"
	"github.com/mcgravity/mcgravity/internal/config"
	"github.com/mcgravity/mcgravity/internal/logging"
	"github.com/mcgravity/mcgravity/internal/mcp"
	"github.com/mcgravity/mcgravity/registry"
)

// Options is the CLI surface mcgravity accepts (spec §6).
type Options struct {
	Host       string `short:"H" long:"host" default:"localhost" description:"listen host"`
	Port       int    `short:"p" long:"port" default:"3001" description:"listen port"`
	ConfigPath string `short:"c" long:"config" description:"path to a YAML config file"`
	McpName    string `long:"mcp-name" default:"mcgravity" description:"name the aggregator advertises"`
	McpVersion string `long:"mcp-version" default:"1.0.0" description:"version the aggregator advertises"`
	LogLevel   string `long:"log-level" default:"info" description:"zerolog level"`

	Args struct {
		Upstreams []string
	} `positional-args:"yes"`
}

func main() {
	options := &Options{}
	if _, err := flags.Parse(options); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "mcgravity:", err)
		os.Exit(1)
	}

	if err := logging.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "mcgravity: invalid log level:", err)
		os.Exit(1)
	}

	descriptors, err := resolveDescriptors(options)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	info := mcp.Implementation{Name: options.McpName, Version: options.McpVersion}
	reg := registry.New()
	comp := composer.New(info, reg, logging.Component("composer"))
	frontend := httpfrontend.New(comp, httpfrontend.DefaultCors(), logging.Component("http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, desc := range descriptors {
		comp.RegisterUpstream(ctx, desc.URL, desc)
	}

	addr := fmt.Sprintf("%s:%d", options.Host, options.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: frontend.Handler(),
		// Idle timeout must stay unset: SSE sessions are long-lived
		// streams, not short request/response cycles (spec §4.1).
	}

	go func() {
		log.Info().Str("addr", addr).Int("upstreams", len(descriptors)).Msg("mcgravity listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	waitForShutdown(context.Background(), server)
}

func resolveDescriptors(options *Options) ([]registry.Descriptor, error) {
	if options.ConfigPath != "" {
		if _, statErr := os.Stat(options.ConfigPath); statErr == nil {
			cfg, err := config.Load(options.ConfigPath)
			if err != nil {
				return nil, err
			}
			if cfg.Name != "" {
				options.McpName = cfg.Name
			}
			if cfg.Version != "" {
				options.McpVersion = cfg.Version
			}
			return cfg.Descriptors(), nil
		}
	}
	return config.DescriptorsFromURLs(options.Args.Upstreams), nil
}

func waitForShutdown(ctx context.Context, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down mcgravity")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	log.Info().Msg("mcgravity stopped")
}
