package di

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	domsvc "Agentomics/internal/domain/service"
	"Agentomics/internal/handler/api"
	internalrepo "Agentomics/internal/repository"
	"Agentomics/internal/service/fred"
	"Agentomics/internal/service/llm"
	"Agentomics/internal/service/ratelimit"
	"Agentomics/internal/services/decision"
	"Agentomics/internal/usecase"
	"Agentomics/pkg/cache"
	pkgch "Agentomics/pkg/clickhouse"
	"Agentomics/pkg/config"
	xhttp "Agentomics/pkg/http"
	pkgkafka "Agentomics/pkg/kafka"
	applogger "Agentomics/pkg/logger"
	"Agentomics/pkg/metrics"
	"Agentomics/pkg/server"
)

// Exports groups the optional outputs of a run.
type Exports struct {
	Sinks     []drepo.SnapshotSink
	Publisher drepo.RoundPublisher
	Store     drepo.QuarterStore
}

// ProvideKafkaProducer creates the shared Kafka producer, or nil when neither
// round export nor log collection needs one.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Export.Kafka && !cfg.Log.Collect {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   int64(cfg.Kafka.Producer.BatchBytes),
		Linger:       cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "kafka producer close: %v\n", err)
		}
	}, nil
}

// ProvideLogger builds the application logger and, when enabled, attaches a
// collector that ships warn/error lines through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.CollectInterval,
			Topic:        cfg.Kafka.LogTopic,
			Publisher:    producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse and creates the quarters
// table, or returns nil when the export is disabled.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.Export.ClickHouse {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := internalrepo.NewCHQuarterStore(client.DB(), cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	if err := client.InitSchema(ctx, store.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideExports builds every enabled sink. The ClickHouse store wins over
// Redis as the read-back store when both are enabled. The cleanup closes the
// sinks and the publisher; shared clients are closed by their own providers.
func ProvideExports(cfg *config.Config, chClient *pkgch.Client, producer *pkgkafka.Producer, log *applogger.Logger) (*Exports, func(), error) {
	ex := &Exports{}
	if cfg.Export.CSVPath != "" {
		ex.Sinks = append(ex.Sinks, internalrepo.NewCSVSink(cfg.Export.CSVPath))
	}
	if cfg.Export.Redis {
		rc, err := NewRedisCache(cfg)
		if err != nil {
			ex.close(log)
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		rs := internalrepo.NewRedisSnapshotStore(rc, cfg.Redis.TTL)
		ex.Sinks = append(ex.Sinks, rs)
		ex.Store = rs
	}
	if chClient != nil {
		cs := internalrepo.NewCHQuarterStore(chClient.DB(), cfg.ClickHouse.Database, cfg.ClickHouse.Table)
		cs.SetLogger(log)
		ex.Sinks = append(ex.Sinks, cs)
		ex.Store = cs
	}
	if cfg.Export.Kafka && producer != nil {
		ex.Publisher = internalrepo.NewKafkaRoundPublisher(producer, cfg.Kafka.Topic)
	}
	return ex, func() { ex.close(log) }, nil
}

func (ex *Exports) close(log *applogger.Logger) {
	for _, s := range ex.Sinks {
		if err := s.Close(); err != nil {
			log.Warn("sink close error", applogger.String("sink", s.Name()), applogger.Error(err))
		}
	}
	if ex.Publisher != nil {
		if err := ex.Publisher.Close(); err != nil {
			log.Warn("publisher close error", applogger.Error(err))
		}
	}
}

// ProvideIndicatorSource creates the FRED client, behind a Redis cache when
// fred.cache is set.
func ProvideIndicatorSource(cfg *config.Config, log *applogger.Logger) (drepo.IndicatorSource, func(), error) {
	client := fred.New(cfg.FRED.APIKey,
		fred.WithBaseURL(cfg.FRED.BaseURL),
		fred.WithFrequency(cfg.FRED.Frequency),
		fred.WithRange(cfg.FRED.ObservationStart, cfg.FRED.ObservationEnd),
		fred.WithTimeout(cfg.FRED.Timeout),
	)
	if !cfg.FRED.Cache {
		return client, func() {}, nil
	}
	rc, err := NewRedisCache(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("fred cache: %w", err)
	}
	cached := fred.NewCachedSource(client, rc, cfg.FRED.CacheTTL, log,
		cfg.FRED.Frequency, cfg.FRED.ObservationStart, cfg.FRED.ObservationEnd)
	return cached, func() { _ = cached.Close() }, nil
}

func NewRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
}

// SeedMappings converts configured FRED series to loader mappings.
func SeedMappings(cfg *config.Config) []usecase.SeedMapping {
	out := make([]usecase.SeedMapping, 0, len(cfg.FRED.Series))
	for _, s := range cfg.FRED.Series {
		out = append(out, usecase.SeedMapping{SeriesID: s.ID, Field: s.Field, Scale: s.Scale})
	}
	return out
}

// ProvideState allocates and seeds the global state from config or FRED.
func ProvideState(cfg *config.Config, src drepo.IndicatorSource, log *applogger.Logger) (*models.GlobalState, error) {
	seed := models.Seed(cfg.Simulation.Seed)
	if len(seed) == 0 {
		seed = models.DefaultSeed()
	}

	if cfg.Simulation.SeedSource == "fred" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.FRED.Timeout)
		defer cancel()
		loaded, err := usecase.NewSeedLoader(src, log).Load(ctx, SeedMappings(cfg), cfg.FRED.SeedQuarters, seed)
		if err != nil {
			return nil, fmt.Errorf("fred seed: %w", err)
		}
		seed = loaded
	}

	st := models.NewGlobalState(cfg.Simulation.Rounds)
	goal, err := models.SignedPercent(cfg.Simulation.InterestRateGoal)
	if err != nil {
		return nil, fmt.Errorf("interest rate goal: %w", err)
	}
	st.CentralBankKnobs.InterestRateGoal = goal
	if err := st.Seed(seed); err != nil {
		return nil, fmt.Errorf("seed state: %w", err)
	}
	return st, nil
}

// ProvideDeciders returns LLM-backed deciders, or deciders that hold every
// knob at its last seeded value on a dry run.
func ProvideDeciders(cfg *config.Config, state *models.GlobalState, log *applogger.Logger) (domsvc.DeciderRegistry, error) {
	if cfg.LLM.DryRun {
		hold, err := decision.HoldLastQuarter(state)
		if err != nil {
			return nil, err
		}
		log.Info("dry run: deciders hold the last seeded quarter")
		return decision.Uniform(hold), nil
	}
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is required unless llm.dry_run is set")
	}

	opts := []llm.Option{llm.WithTimeout(cfg.LLM.Timeout)}
	if cfg.LLM.RequestsPerMinute > 0 {
		opts = append(opts, llm.WithLimiter(ratelimit.New(cfg.LLM.RequestsPerMinute, cfg.LLM.Burst)))
	}
	client := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, opts...)

	reg := decision.NewRegistry()
	for _, role := range models.Roles() {
		model := cfg.LLM.Model
		if m, ok := cfg.LLM.RoleModels[role.String()]; ok && m != "" {
			model = m
		}
		reg.Register(role, decision.NewLLMDecider(client, model,
			decision.WithTemperature(cfg.LLM.Temperature),
			decision.WithMaxTokens(cfg.LLM.MaxTokens),
			decision.WithLogger(log.With(applogger.String("role", role.String()))),
		))
	}
	return reg, nil
}

// ProvideOrchestrator wires state, deciders and exports into a run.
func ProvideOrchestrator(
	cfg *config.Config,
	state *models.GlobalState,
	deciders domsvc.DeciderRegistry,
	ex *Exports,
	m drepo.Metrics,
	log *applogger.Logger,
) (*usecase.RoundOrchestrator, error) {
	mode, err := usecase.ParseMode(cfg.Simulation.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := usecase.ParseOutOfRangePolicy(cfg.Orchestrator.OutOfRange)
	if err != nil {
		return nil, err
	}
	opts := []usecase.OrchestratorOption{
		usecase.WithMode(mode),
		usecase.WithOutOfRangePolicy(policy),
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			MaxAttempts: cfg.Orchestrator.Retry.MaxAttempts,
			BackoffMin:  cfg.Orchestrator.Retry.BackoffMin,
			BackoffMax:  cfg.Orchestrator.Retry.BackoffMax,
		}),
		usecase.WithDecisionTimeout(cfg.Orchestrator.DecisionTimeout),
		usecase.WithSinks(ex.Sinks...),
		usecase.WithMetrics(m),
		usecase.WithLogger(log),
	}
	if ex.Publisher != nil {
		opts = append(opts, usecase.WithRoundPublisher(ex.Publisher))
	}
	return usecase.NewRoundOrchestrator(state, deciders, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	orch *usecase.RoundOrchestrator,
	ex *Exports,
) *server.App {
	app := server.New(cfg, log, orch)
	if cfg.Server.Enabled {
		path := ""
		if cfg.Metrics.Enabled {
			path = cfg.Metrics.Path
		}
		app.SetHTTPHandler(
			api.NewStateHandler(log, orch, ex.Store, 30*time.Second),
			xhttp.WithMetrics(path, nil, nil),
		)
	}
	return app
}
