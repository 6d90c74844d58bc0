package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap"
	"github.com/kailas-cloud/docmap/internal/config"
	logpkg "github.com/kailas-cloud/docmap/internal/logger"
	"github.com/kailas-cloud/docmap/internal/schemagen"
	chiTransport "github.com/kailas-cloud/docmap/internal/transport/chi"
	"github.com/kailas-cloud/docmap/internal/version"
)

const usage = `usage: docmap <command> [flags]

commands:
  serve     run the admin HTTP API (default)
  indexes   create the indexes declared in the model file
  gen       write Go schema declarations for the model file
  stats     print database statistics as JSON
  drop      drop the configured database (requires -yes)
  version   print build information
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "docmap:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	case "serve", "indexes", "gen", "stats", "drop":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	schemas, err := docmap.LoadSchemaFile(cfg.Models.Path)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	if cmd == "gen" {
		return runGen(args, schemas, cfg.Models.Path, stdout)
	}

	client, err := newClient(&cfg, logger, schemas)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("Error closing database", zap.Error(err))
		}
	}()

	ctx := context.Background()
	switch cmd {
	case "indexes":
		if err := client.BuildIndexes(ctx); err != nil {
			return err
		}
		logger.Info("Indexes built", zap.Int("models", len(schemas)))
		return nil
	case "stats":
		stats, err := client.Stats(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "drop":
		fs := flag.NewFlagSet("drop", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "confirm dropping the database")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if !*yes {
			return errors.New("refusing to drop " + cfg.Database.Name + " without -yes")
		}
		return client.Drop(ctx)
	}
	return serve(&cfg, env, logger, client)
}

// newClient maps the database section onto client options.
func newClient(cfg *config.Config, logger *zap.Logger, schemas []*docmap.Schema) (*docmap.Client, error) {
	db := cfg.Database
	opts := []docmap.Option{
		docmap.WithLogger(logger),
		docmap.WithQueryLogging(cfg.Logging.QueryLogging),
		docmap.WithMetrics(),
		docmap.WithReadinessTimeout(db.Readiness()),
		docmap.WithSchemas(schemas...),
	}
	switch db.Driver {
	case config.DriverMongo:
		if db.URI != "" {
			opts = append(opts, docmap.WithMongo(db.URI, db.Name))
		} else {
			opts = append(opts, docmap.WithMongoHost(db.Host, db.Port, db.Name, db.User, db.Password))
		}
	case config.DriverRedis, config.DriverValkey:
		opts = append(opts, docmap.WithRedisAuth(db.KeyPrefix, db.User, db.Password, db.Addrs...))
	case config.DriverMemory:
		opts = append(opts, docmap.WithMemory(db.Name))
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
	return docmap.New(opts...)
}

func runGen(args []string, schemas []*docmap.Schema, source string, stdout io.Writer) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	pkg := fs.String("package", "models", "package name of the generated file")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := schemagen.Generate(schemas, schemagen.Options{Package: *pkg, Source: source})
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = stdout.Write(src)
		return err
	}
	return os.WriteFile(*out, src, 0o644) //nolint:gosec // generated source is world-readable
}

func serve(cfg *config.Config, env string, logger *zap.Logger, client *docmap.Client) error {
	schemas := client.Registry().Schemas()
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}

	logger.Info("Starting docmap admin server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("db_name", cfg.Database.Name),
		zap.Strings("models", names),
	)

	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	server := chiTransport.NewServer(client, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
