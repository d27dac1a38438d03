// Command tiervault runs the file lifecycle service: an HTTP surface for
// uploads and manual sweeps, over three object store tiers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tiervault/tiervault/internal/archive"
	"github.com/tiervault/tiervault/internal/backup"
	"github.com/tiervault/tiervault/internal/compress"
	"github.com/tiervault/tiervault/internal/config"
	"github.com/tiervault/tiervault/internal/pipeline"
	"github.com/tiervault/tiervault/internal/secrets"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/internal/storage/memory"
	s3store "github.com/tiervault/tiervault/internal/storage/s3"
	"github.com/tiervault/tiervault/internal/telemetry"
	"github.com/tiervault/tiervault/internal/validate"
	"github.com/tiervault/tiervault/pkg/api"
	"github.com/tiervault/tiervault/pkg/retry"
	"github.com/tiervault/tiervault/pkg/types"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to YAML configuration file")
		inMemory   = flag.Bool("memory", false, "use in-memory stores instead of S3 (development)")
		sweepOnce  = flag.Bool("sweep", false, "run one sweep and exit instead of serving")
	)
	flag.Parse()

	if err := run(*configFile, *inMemory, *sweepOnce); err != nil {
		fmt.Fprintf(os.Stderr, "tiervault: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, inMemory, sweepOnce bool) error {
	cfg := config.NewDefault()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg.Global)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	intake, backupStore, archiveStore, err := buildStores(ctx, cfg, inMemory)
	if err != nil {
		return err
	}

	collector := telemetry.NewCollector(&telemetry.Config{
		Enabled:   cfg.Telemetry.Enabled,
		Namespace: cfg.Telemetry.Namespace,
		Labels:    cfg.Telemetry.Labels,
	})

	orchestrator := pipeline.New(
		intake,
		validate.New(cfg.Intake.MaxFileSizeBytes, cfg.Intake.AllowedExtensions),
		backup.NewCoordinator(intake, backupStore),
		archive.NewScheduler(backupStore, archiveStore, compress.NewCodec(cfg.Archival.CompressionLevel)),
		collector,
		pipeline.Options{
			AgeThreshold:   cfg.Archival.AgeThreshold,
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			Retry: retry.Config{
				MaxAttempts:  cfg.Retry.MaxAttempts,
				InitialDelay: cfg.Retry.InitialDelay,
				MaxDelay:     cfg.Retry.MaxDelay,
				Jitter:       true,
			},
		},
	)

	if sweepOnce {
		runCtx := ctx
		if cfg.Pipeline.RunTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
			defer cancel()
		}
		summary, err := orchestrator.RunSweep(runCtx)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	server := api.NewServer(api.ServerConfig{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, orchestrator, collector.Registry())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogging(cfg config.GlobalConfig) {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
}

// buildStores constructs the three tier stores, resolving storage
// credentials through the configured secret provider for the S3 path.
func buildStores(ctx context.Context, cfg *config.Configuration, inMemory bool) (intake, backupStore, archiveStore storage.ObjectStore, err error) {
	if inMemory {
		return memory.New(types.TierIntake), memory.New(types.TierBackup), memory.New(types.TierArchive), nil
	}

	creds, err := resolveCredentials(ctx, cfg.Secrets)
	if err != nil {
		return nil, nil, nil, err
	}

	if intake, err = s3store.New(ctx, types.TierIntake, cfg.Stores.Intake, creds); err != nil {
		return nil, nil, nil, err
	}
	if backupStore, err = s3store.New(ctx, types.TierBackup, cfg.Stores.Backup, creds); err != nil {
		return nil, nil, nil, err
	}
	if archiveStore, err = s3store.New(ctx, types.TierArchive, cfg.Stores.Archive, creds); err != nil {
		return nil, nil, nil, err
	}
	return intake, backupStore, archiveStore, nil
}

// resolveCredentials fetches storage credential material via the configured
// secret provider. An empty secret name means ambient credentials.
func resolveCredentials(ctx context.Context, cfg config.SecretsConfig) (s3store.Credentials, error) {
	if cfg.StorageSecretName == "" {
		return s3store.Credentials{}, nil
	}

	var provider secrets.Provider
	switch cfg.Provider {
	case "aws":
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.Region)
		if err != nil {
			return s3store.Credentials{}, err
		}
		provider = awsProvider
	default:
		provider = secrets.EnvProvider{}
	}

	material, err := provider.Resolve(ctx, cfg.StorageSecretName)
	if err != nil {
		return s3store.Credentials{}, err
	}
	return parseCredentials(material)
}

// parseCredentials accepts either a JSON document with access_key_id,
// secret_access_key and optional session_token, or a compact
// "accessKey:secretKey" pair.
func parseCredentials(material string) (s3store.Credentials, error) {
	material = strings.TrimSpace(material)
	if strings.HasPrefix(material, "{") {
		var doc struct {
			AccessKeyID     string `json:"access_key_id"`
			SecretAccessKey string `json:"secret_access_key"`
			SessionToken    string `json:"session_token"`
		}
		if err := json.Unmarshal([]byte(material), &doc); err != nil {
			return s3store.Credentials{}, fmt.Errorf("parsing storage credentials: %w", err)
		}
		return s3store.Credentials{
			AccessKeyID:     doc.AccessKeyID,
			SecretAccessKey: doc.SecretAccessKey,
			SessionToken:    doc.SessionToken,
		}, nil
	}

	parts := strings.SplitN(material, ":", 2)
	if len(parts) != 2 {
		return s3store.Credentials{}, fmt.Errorf("storage credential secret has unrecognized format")
	}
	return s3store.Credentials{AccessKeyID: parts[0], SecretAccessKey: parts[1]}, nil
}
