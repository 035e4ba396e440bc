package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/marvel-comics-source/internal/config"
	"github.com/Sternrassler/marvel-comics-source/pkg/client"
	"github.com/Sternrassler/marvel-comics-source/pkg/logging"
	"github.com/Sternrassler/marvel-comics-source/pkg/source"
)

var version = "0.1.0"

// globalFlags are process-level knobs shared by every command.
type globalFlags struct {
	logLevel    string
	pretty      bool
	redisURL    string
	enableCache bool
	metricsAddr string
	timeout     time.Duration
}

func main() {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "source-marvel",
		Short: "Marvel comics source connector",
		Long: `source-marvel pulls paginated comics from the Marvel public API and writes
connector protocol messages to stdout, one JSON message per line.
Logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  level,
				Pretty: flags.pretty,
				Output: stderr,
			})
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.pretty, "pretty", false, "Human-readable logs instead of JSON")
	pf.StringVar(&flags.redisURL, "redis-url", "", "Redis URL for the shared daily quota and response cache (e.g. redis://localhost:6379/0)")
	pf.BoolVar(&flags.enableCache, "enable-cache", false, "Cache responses in Redis and revalidate them with ETags (requires --redis-url)")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during read (e.g. :9090)")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "Per-request HTTP timeout")

	root.AddCommand(
		newSpecCmd(),
		newCheckCmd(flags),
		newDiscoverCmd(flags),
		newReadCmd(flags),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source-marvel v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// newSource loads the config at path and builds the source with its client.
// The returned cleanup closes the client and Redis.
func newSource(ctx context.Context, path string, flags *globalFlags) (*source.Source, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	ccfg := cfg.ClientConfig()
	ccfg.UserAgent = "source-marvel/" + version
	ccfg.Timeout = flags.timeout
	ccfg.EnableCache = flags.enableCache

	var redisClient *redis.Client
	if flags.redisURL != "" {
		opts, err := redis.ParseURL(flags.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		ccfg.Redis = redisClient
	}

	c, err := client.New(ccfg)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, fmt.Errorf("create client: %w", err)
	}

	src, err := source.New(cfg, c)
	if err != nil {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		c.Close()
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return src, cleanup, nil
}
