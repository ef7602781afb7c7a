// Command tap-ants extracts products and orders from the ActiveAnts
// fulfilment API.
//
// Usage:
//
//	tap-ants [flags] sync       write Singer SCHEMA/RECORD messages to stdout
//	tap-ants [flags] csv        write one CSV file per stream
//	tap-ants [flags] discover   print the stream catalog
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/saturnines/ants-tap/pkg/auth"
	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
	"github.com/saturnines/ants-tap/pkg/config"
	"github.com/saturnines/ants-tap/pkg/core"
	"github.com/saturnines/ants-tap/pkg/logging"
	"github.com/saturnines/ants-tap/pkg/runner"
	"github.com/saturnines/ants-tap/pkg/sink"
	"github.com/saturnines/ants-tap/pkg/storage/file"
	"github.com/saturnines/ants-tap/pkg/storage/sqlite"
	"github.com/saturnines/ants-tap/pkg/transform"
	"github.com/saturnines/ants-tap/pkg/transport/rest"
)

const defaultConfigPath = "config.json"

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tap-ants:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tap-ants", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to the JSON or YAML config file")
	envFile := fs.String("env-file", ".env", "Optional .env file loaded before the config")
	streams := fs.String("streams", "", "Comma separated streams ("+strings.Join(catalog.Names(), ", ")+"), overrides the config")
	logLevel := fs.String("log-level", "", "debug, info, warn or error, overrides the config")
	logFormat := fs.String("log-format", "", "json or text, overrides the config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := "sync"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}
	if command == "discover" {
		return discover(stdout)
	}
	if command != "sync" && command != "csv" {
		return fmt.Errorf("unknown command %q (want sync, csv or discover)", command)
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	tap, err := config.NewDefaultLoader().Load(*configPath)
	if err != nil {
		return err
	}
	if *streams != "" {
		tap.Streams = strings.Split(*streams, ",")
	}
	if *logLevel != "" {
		tap.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		tap.Logging.Format = *logFormat
	}

	logger := logging.New(logging.Config{
		Service: "tap-ants",
		Version: version,
		Level:   tap.Logging.Level,
		Format:  tap.Logging.Format,
		Output:  stderr,
	})
	slog.SetDefault(logger)

	descs, err := catalog.Select(tap.Streams)
	if err != nil {
		return err
	}

	var out sink.Sink
	if command == "csv" {
		out = sink.NewCSVSink(tap.Output.Dir,
			sink.WithColumns(sink.ColumnMode(tap.Output.Columns)),
			sink.WithCSVLogger(logger),
		)
	} else {
		out = sink.NewSingerSink(stdout)
	}

	conform := tap.ConformRecords || (command == "csv" && tap.Output.Columns == config.ColumnsSchema)
	r, cleanup, err := newRunner(tap, *configPath, conform, logger, out)
	if err != nil {
		return err
	}
	defer cleanup()

	report := r.Run(ctx, descs)
	return report.Err()
}

// newRunner wires token provider, client, orchestrator and sinks.
func newRunner(tap *config.Tap, configPath string, conform bool, logger *slog.Logger, sinks ...sink.Sink) (*runner.Runner, func(), error) {
	cleanup := func() {}

	var doer rest.HTTPDoer = &http.Client{Timeout: tap.RequestTimeout()}
	if rl := tap.RateLimit; rl != nil {
		doer = rest.NewRateLimitedDoer(doer, rl.RequestsPerSecond, rl.Burst)
	}

	store, closeStore, err := newTokenStore(tap, configPath)
	if err != nil {
		return nil, nil, err
	}
	if closeStore != nil {
		cleanup = closeStore
	}

	provider, err := auth.NewTokenProvider(tap.APIURL, tap.Username, tap.Password,
		auth.WithHTTPDoer(doer),
		auth.WithTokenStore(store),
		auth.WithRefreshBefore(tap.RefreshBefore()),
		auth.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	c, err := client.New(tap.APIURL, provider,
		client.WithHTTPDoer(doer),
		client.WithPagination(tap.Pagination),
		client.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := []runner.Option{
		runner.WithPolicy(runner.Policy(tap.ErrorPolicy)),
		runner.WithSinks(sinks...),
		runner.WithLogger(logger),
	}
	if conform {
		conformer, err := transform.NewConformer(transform.NewRegistry())
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, runner.WithConformer(conformer))
	}

	orch := core.New(c, core.WithConcurrency(tap.Concurrency), core.WithLogger(logger))
	return runner.New(orch, opts...), cleanup, nil
}

// newTokenStore picks the token persistence configured for the run.
func newTokenStore(tap *config.Tap, configPath string) (auth.TokenStore, func(), error) {
	switch tap.TokenStore.Type {
	case config.TokenStoreSQLite:
		s, err := sqlite.New(tap.TokenStore.Path, sqlite.Account(tap.Username, tap.APIURL))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.TokenStoreMemory:
		if value, exp, ok := tap.PersistedToken(); ok {
			return auth.NewMemoryStore(auth.Token{Value: value, ExpiresAt: exp}), nil, nil
		}
		return auth.NewMemoryStore(), nil, nil
	default:
		return file.NewStore(configPath), nil, nil
	}
}

// discover prints the catalog in the Singer catalog layout.
func discover(w io.Writer) error {
	type entry struct {
		Stream        string                 `json:"stream"`
		TapStreamID   string                 `json:"tap_stream_id"`
		KeyProperties []string               `json:"key_properties"`
		Schema        map[string]interface{} `json:"schema"`
		ParentStream  string                 `json:"parent_stream,omitempty"`
	}

	var streams []entry
	for _, d := range catalog.All() {
		e := entry{
			Stream:        d.Name(),
			TapStreamID:   d.Name(),
			KeyProperties: []string{d.PrimaryKey},
			Schema:        d.JSONSchema(),
		}
		if d.Derived() {
			e.ParentStream = string(d.Derivation.Parent)
		}
		streams = append(streams, e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"streams": streams})
}
