package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polycopy/internal/admission"
	s3blob "github.com/alanyoungcy/polycopy/internal/blob/s3"
	"github.com/alanyoungcy/polycopy/internal/cache/redis"
	"github.com/alanyoungcy/polycopy/internal/chain"
	"github.com/alanyoungcy/polycopy/internal/config"
	"github.com/alanyoungcy/polycopy/internal/crypto"
	"github.com/alanyoungcy/polycopy/internal/domain"
	"github.com/alanyoungcy/polycopy/internal/executor"
	"github.com/alanyoungcy/polycopy/internal/feed"
	"github.com/alanyoungcy/polycopy/internal/ledger"
	"github.com/alanyoungcy/polycopy/internal/persist"
	"github.com/alanyoungcy/polycopy/internal/platform/polymarket"
	"github.com/alanyoungcy/polycopy/internal/sizing"
	"github.com/alanyoungcy/polycopy/internal/store/postgres"
)

// Dependencies bundles the wired pipeline components. It is constructed by
// Wire and torn down by the returned cleanup function; the Persist store is
// closed separately, after the pipeline has drained, so the final snapshot
// is flushed.
type Dependencies struct {
	Stream     *chain.Stream
	Balance    *executor.BalanceCache
	Clob       *polymarket.ClobClient
	Book       *ledger.Ledger
	Persist    *persist.Store
	Replicator *executor.Replicator
	Feed       *feed.Feed

	// Archiver is nil unless the S3 section is enabled.
	Archiver *s3blob.Archiver

	// Fills is the channel the stream writes into and the replicator
	// consumes from.
	Fills chan domain.RawFill
}

// Wire constructs every pipeline component from the given configuration and
// returns them together with a cleanup function that releases connections on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signing key ---
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}
	signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	fundsAddress := cfg.Wallet.FundsAddress
	if fundsAddress == "" {
		fundsAddress = signer.Address().Hex()
	}

	// --- Chain ---
	deps.Stream, err = chain.NewStream(cfg.Chain.WsURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain stream: %w", err)
	}

	rpcURL := cfg.Chain.RPCURL
	if rpcURL == "" {
		rpcURL = cfg.Chain.WsURL
	}
	reader := chain.NewBalanceReader(rpcURL)
	closers = append(closers, reader.Close)
	deps.Balance = executor.NewBalanceCache(reader, fundsAddress, logger)

	// --- CLOB ---
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer)

	// --- PostgreSQL audit mirror (optional) ---
	var mirror domain.AuditMirror
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		mirror = postgres.NewCopyTradeStore(pgClient.Pool())
	}

	// --- Redis price cache (optional) ---
	var prices domain.PriceCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		prices = redis.NewPriceCache(redisClient)
	}

	// --- Persistence ---
	deps.Persist, err = persist.Open(cfg.Persist.OrdersLogPath, cfg.Persist.SnapshotPath, mirror, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: persist: %w", err)
	}

	// --- S3 archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		// The archiver swallows upload errors on its interval, so verify
		// the bucket once here where a misconfiguration can still abort
		// startup.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			cfg.Persist.OrdersLogPath,
			cfg.S3.ArchiveMinBytes,
			logger,
		)
	}

	// --- Pipeline ---
	deps.Book = ledger.New()
	deps.Fills = make(chan domain.RawFill, 256)

	deps.Replicator = executor.New(
		executor.Config{
			WatchedAddress: cfg.Watch.TargetAddress,
			SnapshotEveryN: cfg.Persist.SnapshotEveryN,
			DedupTTL:       cfg.Admission.DedupTTL.Duration,
		},
		deps.Fills,
		sizingPolicy(cfg),
		admissionLimiter(cfg),
		admissionGate(cfg),
		deps.Book,
		deps.Clob,
		executor.NewClassifier(),
		deps.Balance,
		deps.Persist,
		deps.Persist,
		prices,
		logger,
	)

	deps.Feed = feed.New(cfg.Polymarket.WsHost, deps.Book, prices, logger)

	return deps, cleanup, nil
}

func sizingPolicy(cfg *config.Config) *sizing.Policy {
	return sizing.New(sizing.Config{
		SizeMultiplier: cfg.Sizing.SizeMultiplier,
		MinShares:      cfg.Sizing.MinShares,
		MaxNotionalUSD: cfg.Sizing.MaxUSDCPerOrder,
	})
}

func admissionLimiter(cfg *config.Config) *admission.Limiter {
	return admission.NewLimiter(cfg.Admission.MaxOrdersPerMin)
}

func admissionGate(cfg *config.Config) *admission.Gate {
	return admission.NewGate(cfg.Admission.MaxInflight)
}
