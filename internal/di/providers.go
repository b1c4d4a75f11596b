package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	drepo "QuantGate/internal/domain/repository"
	internalrepo "QuantGate/internal/repository"
	"QuantGate/internal/usecase"
	"QuantGate/pkg/cache"
	pkgch "QuantGate/pkg/clickhouse"
	"QuantGate/pkg/config"
	pkgkafka "QuantGate/pkg/kafka"
	applogger "QuantGate/pkg/logger"
	"QuantGate/pkg/metrics"
	"QuantGate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// snapshot schema exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS quantgate",
		`CREATE TABLE IF NOT EXISTS quantgate.snapshot_bars (
            snapshot_ref String,
            symbol String,
            ts DateTime64(3, 'UTC'),
            open Float64, high Float64, low Float64, close Float64,
            volume Float64
        ) ENGINE=MergeTree ORDER BY (snapshot_ref, symbol, ts)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSnapshotLoader creates the hash-verifying bar loader.
func ProvideSnapshotLoader(chClient *pkgch.Client, l *applogger.Logger) drepo.SnapshotLoader {
	store := internalrepo.NewCHBarStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideEvidenceStore creates the append-only artifact store.
func ProvideEvidenceStore(cfg *config.Config, l *applogger.Logger) (drepo.EvidenceStore, error) {
	store, err := internalrepo.NewFileEvidenceStore(cfg.Evidence.Dir)
	if err != nil {
		return nil, err
	}
	store.SetLogger(l)
	return store, nil
}

// ProvideDecisionPublisher creates the registry publisher. With Kafka
// disabled decisions stay local to the evidence store.
func ProvideDecisionPublisher(cfg *config.Config, l *applogger.Logger) (drepo.DecisionPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic, cfg.Kafka.SummariesTopic)
	pub.SetLogger(l)
	return pub, nil
}

// ProvideSummaryCache creates the results cache. With Redis disabled
// every read falls through to the evidence store.
func ProvideSummaryCache(cfg *config.Config) (drepo.SummaryCache, error) {
	if !cfg.Redis.Enabled {
		return internalrepo.NoopSummaryCache{}, nil
	}
	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("quantgate"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return internalrepo.NewRedisSummaryCache(rc), nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	port := 0
	for _, r := range portStr {
		if r < '0' || r > '9' {
			return addr, 6379
		}
		port = port*10 + int(r-'0')
	}
	if port == 0 {
		port = 6379
	}
	return host, port
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideExperimentRunner creates the experiment orchestrator.
func ProvideExperimentRunner(
	loader drepo.SnapshotLoader,
	store drepo.EvidenceStore,
	pub drepo.DecisionPublisher,
	summaryCache drepo.SummaryCache,
	m drepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ExperimentRunner {
	return usecase.NewExperimentRunner(loader, store, pub, summaryCache, m, l, cfg.Workers)
}

// ProvideResultsReader creates the read-only results use case.
func ProvideResultsReader(
	store drepo.EvidenceStore,
	summaryCache drepo.SummaryCache,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ResultsReader {
	return usecase.NewResultsReader(store, summaryCache, cfg.Redis.TTL, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.ExperimentRunner,
	results *usecase.ResultsReader,
	pub drepo.DecisionPublisher,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, runner, results, pub, chClient)
}
