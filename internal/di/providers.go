package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/handler/api"
	internalrepo "github.com/stanford201807/TW-Pulse-CLI-sub000/internal/repository"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/breaker"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/cache"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/service/ratelimit"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/analytics"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/features"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/labeling"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/services/training"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/usecase"
	pkgch "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/clickhouse"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/config"
	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
	pkgkafka "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/kafka"
	applogger "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/metrics"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/queue"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/scheduler"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/server"
)

const connectTimeout = 10 * time.Second

func noop() {}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideDigest attaches a warn/error digest that is flushed to a Kafka topic.
func ProvideDigest(cfg *config.Config, l *applogger.Logger, producer *pkgkafka.Producer) (*applogger.Digest, func()) {
	if !cfg.Log.Digest.Enabled {
		return nil, noop
	}
	if producer == nil {
		l.Warn("log digest needs kafka, disabled")
		return nil, noop
	}
	d := applogger.NewDigest(applogger.DigestConfig{
		Interval:  cfg.Log.Digest.Interval,
		MaxUnique: cfg.Log.Digest.MaxUnique,
		Topic:     cfg.Log.Digest.Topic,
		Publisher: producer,
	})
	l.AttachDigest(d)
	return d, func() {
		l.DetachDigest()
		d.Close()
	}
}

// ProvidePromRegistry creates the registry served on /metrics.
func ProvidePromRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideRedisClient connects only when a Redis-backed cache or queue is configured.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if cfg.Cache.Backend != cache.BackendRedis && cfg.Queue.Backend != "redis" {
		return nil, noop, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return cli, func() { _ = cli.Close() }, nil
}

// ProvideClickHouseClient connects when bars or results live in ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Bars.Source != "clickhouse" && !cfg.ClickHouse.StoreResults {
		return nil, noop, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := pkgch.NewClient(ctx, pkgch.Config{
		Host:         cfg.ClickHouse.Host,
		Port:         cfg.ClickHouse.Port,
		Database:     cfg.ClickHouse.Database,
		User:         cfg.ClickHouse.User,
		Password:     cfg.ClickHouse.Password,
		HTTP:         cfg.ClickHouse.UseHTTP,
		DialTimeout:  cfg.ClickHouse.DialTimeout,
		ReadTimeout:  cfg.ClickHouse.ReadTimeout,
		MaxExecution: cfg.ClickHouse.MaxExecutionTime,
		AsyncInsert:  cfg.ClickHouse.AsyncInsert,
		WaitAsync:    cfg.ClickHouse.WaitForAsync,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if cfg.Bars.Source == "clickhouse" {
		ddl := []string{pkgch.BarTableDDL(client.Table(cfg.Bars.Table))}
		if err := client.InitSchema(ctx, ddl); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideBarStore selects the configured price-history backend.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.BarStore, func(), error) {
	switch cfg.Bars.Source {
	case "clickhouse":
		return internalrepo.NewCHBarStore(ch, ch.Table(cfg.Bars.Table), l), noop, nil
	case "postgres":
		pg := internalrepo.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			QueryTimeout:    cfg.Postgres.QueryTimeout,
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		db, err := internalrepo.OpenPostgres(ctx, pg)
		if err != nil {
			return nil, nil, err
		}
		return internalrepo.NewPostgresBarStore(db, pg, l), func() { _ = db.Close() }, nil
	case "memory":
		return internalrepo.NewMemoryBarStore(), noop, nil
	default:
		return internalrepo.NewCSVBarStore(cfg.Bars.CSVDir), noop, nil
	}
}

// ProvideBarWriter exposes the ingest side of the bar store, if it has one.
func ProvideBarWriter(store repository.BarStore) repository.BarWriter {
	if w, ok := store.(repository.BarWriter); ok {
		return w
	}
	return nil
}

// ProvideBarCache builds the configured byte cache in front of the bar store.
func ProvideBarCache(cfg *config.Config, rdb *redis.Client) (*cache.BarCache, func(), error) {
	var (
		backend cache.BytesCache
		err     error
	)
	switch cfg.Cache.Backend {
	case cache.BackendMemory:
		backend = cache.NewTTLCache()
	case cache.BackendRedis:
		// The client is shared with the queue and closed by its own cleanup.
		return cache.NewBarCache(cache.NewRedisCacheFromClient(rdb, cfg.Cache.Prefix), cache.BackendRedis, cfg.Cache.TTL), noop, nil
	case cache.BackendBadger:
		backend, err = cache.NewBadgerCache(cache.BadgerConfig{Path: cfg.Cache.BadgerDir})
		if err != nil {
			return nil, nil, err
		}
	default:
		return cache.NewBarCache(nil, cache.BackendNone, 0), noop, nil
	}
	bc := cache.NewBarCache(backend, cfg.Cache.Backend, cfg.Cache.TTL)
	return bc, func() { _ = bc.Close() }, nil
}

// ProvideHistoryLoader wraps the bar store with cache, rate limit and breaker.
func ProvideHistoryLoader(cfg *config.Config, store repository.BarStore, bc *cache.BarCache, m repository.Metrics, l *applogger.Logger) *usecase.HistoryLoader {
	return usecase.NewHistoryLoader(store, cfg.Bars.Source,
		usecase.WithBarCache(bc),
		usecase.WithRateLimiter(ratelimit.New(cfg.Bars.RateLimit, cfg.Bars.Burst)),
		usecase.WithBreaker(breaker.New("bars-"+cfg.Bars.Source, breaker.Config{
			MaxFailures: cfg.Bars.Breaker.MaxFailures,
			Interval:    cfg.Bars.Breaker.Interval,
			Timeout:     cfg.Bars.Breaker.Timeout,
		}, l)),
		usecase.WithConcurrency(cfg.Scanner.Concurrency),
		usecase.WithHistoryMetrics(m),
		usecase.WithHistoryLogger(l),
	)
}

func ProvideArtifactStore(cfg *config.Config) repository.ArtifactStore {
	return internalrepo.NewFileArtifactStore(cfg.Model.Dir)
}

func ProvideScorerRegistry(cfg *config.Config) *analytics.Registry {
	return analytics.DefaultRegistry(&cfg.Sapta)
}

// ProvideEngine builds the aggregation engine. An unreachable remote predictor
// falls back to the local model artifacts.
func ProvideEngine(
	cfg *config.Config,
	registry *analytics.Registry,
	loader *usecase.HistoryLoader,
	artifacts repository.ArtifactStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Engine {
	opts := []usecase.EngineOption{
		usecase.WithEngineLogger(l),
		usecase.WithEngineMetrics(m),
		usecase.WithArtifactStore(artifacts),
		usecase.WithPeriodDays(cfg.Scanner.PeriodDays),
	}
	if cfg.Predictor.Kind == "http" {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		p, err := analytics.NewHTTPPredictor(ctx,
			analytics.NewHTTPServiceBase(cfg.Predictor.URL, cfg.Predictor.Timeout),
			cfg.Predictor.Attempts)
		cancel()
		if err != nil {
			l.Warn("remote predictor unavailable, using local model",
				applogger.String("url", cfg.Predictor.URL), applogger.Error(err))
		} else {
			opts = append(opts, usecase.WithPredictor(p))
		}
	}
	return usecase.NewEngine(cfg.Sapta, registry, loader, opts...)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, noop, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		BatchTimeout: cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	}, pkgkafka.WithLogger(l), pkgkafka.WithMetrics(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideResultPublisher publishes results to Kafka, or nowhere when Kafka is off.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideResultStore persists scan results in ClickHouse when enabled.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.ResultStore, error) {
	if !cfg.ClickHouse.StoreResults || ch == nil {
		return nil, nil
	}
	rs := internalrepo.NewCHResultStore(ch, ch.Table(cfg.ClickHouse.ResultsTable), l)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rs.Init(ctx); err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}
	return rs, nil
}

func ProvideScanner(
	cfg *config.Config,
	engine *usecase.Engine,
	loader *usecase.HistoryLoader,
	pub repository.ResultPublisher,
	rs repository.ResultStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Scanner {
	opts := []usecase.ScannerOption{
		usecase.WithProgressEvery(cfg.Scanner.ProgressEvery),
		usecase.WithScanPeriod(cfg.Scanner.PeriodDays),
		usecase.WithScannerMetrics(m),
		usecase.WithScannerLogger(l),
	}
	if pub != nil {
		opts = append(opts, usecase.WithResultPublisher(pub))
	}
	if rs != nil {
		opts = append(opts, usecase.WithResultStore(rs))
	}
	return usecase.NewScanner(engine, loader, opts...)
}

func ProvideUniverse(cfg *config.Config) repository.UniverseProvider {
	return internalrepo.NewFileUniverse(cfg.Universe.File, nil)
}

// ProvideTraining assembles sample generation and the learner around the engine.
func ProvideTraining(
	cfg *config.Config,
	engine *usecase.Engine,
	registry *analytics.Registry,
	loader *usecase.HistoryLoader,
	universe repository.UniverseProvider,
	artifacts repository.ArtifactStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.TrainingUseCase {
	tc := cfg.Training.TrainingConfig
	gen := training.NewSampleGenerator(engine,
		features.NewExtractor(registry.FeatureSchema()),
		labeling.NewLabeler(cfg.Sapta.Target),
		tc, l)
	trainer := training.NewTrainer(tc, cfg.Sapta.Target, artifacts,
		training.WithTrainerLogger(l),
		training.WithFallbackThresholds(cfg.Sapta.Thresholds))
	return usecase.NewTrainingUseCase(usecase.TrainingDeps{
		Engine:     engine,
		Prefetcher: loader,
		Universe:   universe,
		Generator:  gen,
		Trainer:    trainer,
		Store:      artifacts,
		Metrics:    m,
		Logger:     l,
	}, tc, cfg.Sapta.Target, models.TrainMode(cfg.Training.Mode), cfg.Training.PeriodDays)
}

// ProvideQueue runs queued training either in-process or on Redis.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, rdb *redis.Client, uc *usecase.TrainingUseCase) (queue.QueueService, func(), error) {
	job := usecase.NewTrainJob(uc, l)
	stop := func(s interface{ Stop(context.Context) error }) func() {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := s.Stop(ctx); err != nil {
				l.Warn("queue stop error", applogger.Error(err))
			}
		}
	}
	if cfg.Queue.Backend == "redis" {
		q := queue.NewRedisQueue(l, &queue.QueueConfig{
			Workers:    cfg.Queue.Workers,
			QueueSize:  cfg.Queue.QueueSize,
			RetryLimit: cfg.Queue.RetryLimit,
			RetryDelay: cfg.Queue.RetryDelay,
		}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
		q.RegisterJob(job)
		if err := q.Start(); err != nil {
			return nil, nil, fmt.Errorf("redis queue: %w", err)
		}
		return q, stop(q), nil
	}
	q := queue.NewLocalQueue(l, cfg.Queue.Workers, cfg.Queue.QueueSize, job)
	return q, stop(q), nil
}

// ProvideBarsUpdatedHandler re-evaluates tickers announced on the bar update topic.
func ProvideBarsUpdatedHandler(
	cfg *config.Config,
	engine *usecase.Engine,
	store repository.BarStore,
	writer repository.BarWriter,
	rs repository.ResultStore,
	pub repository.ResultPublisher,
	l *applogger.Logger,
) *usecase.BarsUpdatedHandler {
	minStatus, _ := models.ParseStatus(cfg.Scanner.MinStatus)
	return usecase.NewBarsUpdatedHandler(usecase.BarsUpdatedDeps{
		Topic:     cfg.Bars.Topic,
		Engine:    engine,
		Store:     store,
		Writer:    writer,
		Lookback:  cfg.Scanner.PeriodDays,
		MinStatus: minStatus,
		Results:   rs,
		Publisher: pub,
		Logger:    l,
	})
}

// ProvideKafkaConsumer creates the bar update consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *usecase.BarsUpdatedHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    kc.GroupID,
		Workers:    kc.Workers,
		BufferSize: kc.BufferSize,
		RetryMax:   kc.RetryMax,
		BackoffMin: kc.BackoffMin,
		BackoffMax: kc.BackoffMax,
		DLQTopic:   kc.DLQTopic,
		MinBytes:   kc.MinBytes,
		MaxBytes:   kc.MaxBytes,
	}, pkgkafka.WithLogger(l), pkgkafka.WithMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideScheduler registers the periodic scan and retrain jobs.
func ProvideScheduler(
	cfg *config.Config,
	l *applogger.Logger,
	scanner *usecase.Scanner,
	universe repository.UniverseProvider,
	uc *usecase.TrainingUseCase,
) (*scheduler.Scheduler, error) {
	if cfg.Schedule.Scan == "" && cfg.Schedule.Retrain == "" {
		return nil, nil
	}
	var opts []scheduler.Option
	if cfg.Schedule.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone: %w", err)
		}
		opts = append(opts, scheduler.WithLocation(loc))
	}
	s := scheduler.New(l, opts...)

	minStatus, _ := models.ParseStatus(cfg.Scanner.MinStatus)
	if err := s.Add("scan", cfg.Schedule.Scan, 30*time.Minute, func(ctx context.Context) error {
		tickers, err := universe.Tickers(ctx)
		if err != nil {
			return err
		}
		results, err := scanner.Scan(ctx, tickers, usecase.ScanOptions{
			MinStatus:  minStatus,
			PeriodDays: cfg.Scanner.PeriodDays,
			Limit:      cfg.Scanner.Limit,
		})
		if err != nil {
			return err
		}
		l.Info("scheduled scan matched", applogger.Int("tickers", len(tickers)), applogger.Int("matched", len(results)))
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.Add("retrain", cfg.Schedule.Retrain, 6*time.Hour, func(ctx context.Context) error {
		_, err := uc.Run(ctx, usecase.TrainParams{})
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideModelWatcher hot-reloads artifacts written by another process.
func ProvideModelWatcher(cfg *config.Config, engine *usecase.Engine, l *applogger.Logger) *usecase.ModelWatcher {
	if !cfg.Model.Watch {
		return nil
	}
	return usecase.NewModelWatcher(cfg.Model.Dir, internalrepo.ArtifactFiles, engine, cfg.Model.WatchDebounce, l)
}

func ProvideAPIHandler(
	l *applogger.Logger,
	engine *usecase.Engine,
	scanner *usecase.Scanner,
	universe repository.UniverseProvider,
	uc *usecase.TrainingUseCase,
	q queue.QueueService,
	rs repository.ResultStore,
) *api.SaptaEchoHandler {
	return api.NewSaptaEchoHandler(api.SaptaDeps{
		Logger:   l,
		Engine:   engine,
		Scanner:  scanner,
		Universe: universe,
		Trainer:  uc,
		Queue:    q,
		Results:  rs,
	})
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.SaptaEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.CORSOrigins...),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Server.SlowRequest))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp creates the application server. The digest is taken only so it is
// constructed and attached.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	_ *applogger.Digest,
	engine *usecase.Engine,
	scanner *usecase.Scanner,
	uc *usecase.TrainingUseCase,
	universe repository.UniverseProvider,
	store repository.BarStore,
	writer repository.BarWriter,
	rs repository.ResultStore,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	sched *scheduler.Scheduler,
	watcher *usecase.ModelWatcher,
) *server.App {
	return server.New(cfg, l, server.Components{
		Engine:   engine,
		Scanner:  scanner,
		Training: uc,
		Universe: universe,
		Store:    store,
		Writer:   writer,
		Results:  rs,
	}, httpServer, consumer, sched, watcher)
}
