package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/ironsheep/slide-tools-mcp/internal/cache"
	"github.com/ironsheep/slide-tools-mcp/internal/config"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
	"github.com/ironsheep/slide-tools-mcp/internal/metrics"
	"github.com/ironsheep/slide-tools-mcp/internal/ocr"
	"github.com/ironsheep/slide-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("slide-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  OCR:        %s\n", ocr.Info().Backend)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q (try --help)\n", os.Args[1])
			os.Exit(2)
		}
	}

	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// Logging is still at its defaults here, which go to stderr.
		return err
	}
	logging.Init(cfg.Logging())
	log := logging.Component("main")

	if err := cache.Global().Resize(cfg.Cache.GlobalCapacity); err != nil {
		return fmt.Errorf("sizing global cache: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("listen", cfg.Metrics.Listen).Msg("metrics listener failed")
			}
		}()
	}

	log.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Int("global_cache_capacity", cfg.Cache.GlobalCapacity).
		Str("key_scope", cfg.Slide.KeyScope).
		Str("metrics", cfg.Metrics.Listen).
		Bool("ocr", ocr.Info().Available).
		Msg("slide-tools-mcp starting")

	return server.New(cfg, Version).Run()
}

func printHelp() {
	fmt.Println("slide-tools-mcp - MCP server for whole-slide image navigation")
	fmt.Println()
	fmt.Println("Usage: slide-tools-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Configuration is read from slide-mcp.yaml (or the file named by")
	fmt.Println("SLIDE_MCP_CONFIG) and SLIDE_MCP_* environment variables, e.g.:")
	fmt.Println("  SLIDE_MCP_LOG__LEVEL=debug                Enable debug logging")
	fmt.Println("  SLIDE_MCP_LOG__FORMAT=console             Human-readable logs")
	fmt.Println("  SLIDE_MCP_CACHE__GLOBAL_CAPACITY=2000     Global region cache size")
	fmt.Println("  SLIDE_MCP_SLIDE__KEY_SCOPE=source         Share cache entries across sessions")
	fmt.Println("  SLIDE_MCP_METRICS__LISTEN=:9464           Serve Prometheus metrics")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
