package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wearable-sync/internal/activity"
	"wearable-sync/internal/config"
	"wearable-sync/internal/database"
	"wearable-sync/internal/events"
	"wearable-sync/internal/httpapi"
	mqttclient "wearable-sync/internal/mqtt"
	"wearable-sync/internal/nutrition"
	"wearable-sync/internal/preferences"
	"wearable-sync/internal/progress"
	"wearable-sync/internal/repository"
	"wearable-sync/internal/source"
	"wearable-sync/internal/store"
	"wearable-sync/internal/telemetry"
)

const prefsKeyPrefix = "wearable:prefs:"

// WearableSyncService owns every component of the process.
type WearableSyncService struct {
	config *config.Config
	logger *zap.Logger

	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttclient.Client

	telemetry *telemetry.Service
	tracker   *activity.Tracker
	app       *fiber.App
}

// NewWearableSyncService connects the configured infrastructure and builds the components.
func NewWearableSyncService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*WearableSyncService, error) {
	s := &WearableSyncService{config: cfg, logger: logger}
	if err := s.init(ctx); err != nil {
		s.closeInfra()
		return nil, err
	}
	return s, nil
}

func (s *WearableSyncService) init(ctx context.Context) error {
	cfg := s.config

	if cfg.UsesRedis() {
		client, err := store.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		s.redis = client
	}

	var prefsBackend preferences.Backend
	switch cfg.Preferences.Backend {
	case config.BackendRedis:
		prefsBackend = preferences.NewKVBackend(store.NewRedisKV(s.redis, prefsKeyPrefix))
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		repo := repository.NewPreferencesRepository(db, s.logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		prefsBackend = preferences.NewPostgresBackend(repo)
	default:
		prefsBackend = preferences.NewKVBackend(store.NewMemoryKV())
	}
	prefs := preferences.NewStore(prefsBackend, s.logger)

	src, mode, err := s.buildSource()
	if err != nil {
		return err
	}

	opts := []telemetry.Option{}
	if cfg.Events.Enabled {
		opts = append(opts, telemetry.WithObserver(
			events.NewRedisPublisher(s.redis, cfg.Events.Stream, cfg.Events.Source, s.logger),
		))
	}
	svc, err := telemetry.New(src, telemetry.Config{
		Mode:           mode,
		ConnectTimeout: cfg.Device.ConnectTimeout,
		SyncTimeout:    cfg.Device.SyncTimeout,
		QueueTimeout:   cfg.Device.QueueTimeout,
	}, s.logger, opts...)
	if err != nil {
		return err
	}
	s.telemetry = svc

	s.tracker = activity.NewTracker(svc, activity.Config{
		StepsGoal:        cfg.Activity.StepsGoal,
		BaselineSteps:    cfg.Activity.BaselineSteps,
		BaselineCalories: cfg.Activity.BaselineCalories,
	}, s.logger)

	diary := nutrition.NewDiary(nutrition.Config{
		CalorieGoal: cfg.Nutrition.CalorieGoal,
		ProteinGoal: cfg.Nutrition.ProteinGoal,
		CarbsGoal:   cfg.Nutrition.CarbsGoal,
		FatGoal:     cfg.Nutrition.FatGoal,
	}, s.tracker, s.logger)
	weights, err := progress.NewWeightLog(cfg.Progress.InitialWeights, s.logger)
	if err != nil {
		return fmt.Errorf("failed to load weight history: %w", err)
	}

	ctrl := httpapi.NewController(svc, s.tracker, diary, weights, prefs, s.logger)
	s.app = httpapi.NewApp(ctrl, s.logger)
	return nil
}

// buildSource returns the configured source and the sync mode it reports in.
func (s *WearableSyncService) buildSource() (telemetry.Source, telemetry.SyncMode, error) {
	dev := s.config.Device
	switch dev.Source {
	case config.SourceMQTT:
		mode, err := telemetry.ParseSyncMode(dev.SyncMode, telemetry.ModeReplace)
		if err != nil {
			return nil, "", err
		}
		client, err := mqttclient.NewClient(&s.config.MQTT, s.logger)
		if err != nil {
			return nil, "", fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.mqttClient = client
		src, err := source.NewMQTTSource(client, source.MQTTConfig{
			DeviceID:        dev.ID,
			TopicPrefix:     dev.MQTTTopicPrefix,
			QoS:             s.config.MQTT.QoS,
			ReadingMaxAge:   dev.MQTTReadingMaxAge,
			ConsumeReadings: mode == telemetry.ModeAccumulate,
		}, s.logger)
		return src, mode, err

	case config.SourceCloud:
		mode, err := telemetry.ParseSyncMode(dev.SyncMode, telemetry.ModeReplace)
		if err != nil {
			return nil, "", err
		}
		src, err := source.NewCloudSource(source.CloudConfig{
			BaseURL:  dev.CloudAPIURL,
			Token:    dev.CloudAPIToken,
			DeviceID: dev.ID,
			Timeout:  dev.SyncTimeout,
		}, s.logger)
		return src, mode, err

	default:
		mode, err := telemetry.ParseSyncMode(dev.SyncMode, telemetry.ModeAccumulate)
		if err != nil {
			return nil, "", err
		}
		return source.NewMockSource(source.MockConfig{
			DeviceID:     dev.ID,
			Platform:     dev.Platform,
			ConnectDelay: dev.MockConnectDelay,
			SyncDelay:    dev.MockSyncDelay,
		}, s.logger), mode, nil
	}
}

// App exposes the HTTP app.
func (s *WearableSyncService) App() *fiber.App { return s.app }

// Telemetry exposes the telemetry service.
func (s *WearableSyncService) Telemetry() *telemetry.Service { return s.telemetry }

// Start seeds the baseline and serves HTTP until ctx ends, then stops everything.
func (s *WearableSyncService) Start(ctx context.Context) error {
	s.logger.Info("Starting wearable-sync service components",
		zap.String("source", s.config.Device.Source),
		zap.String("sync_mode", string(s.telemetry.Mode())),
		zap.String("http_addr", s.config.HTTP.Addr),
	)
	if err := s.tracker.Seed(ctx); err != nil {
		return err
	}

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.app.Listen(s.config.HTTP.Addr); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gCtx.Done()
		return s.Stop(context.Background())
	})

	return group.Wait()
}

// Stop shuts the HTTP server down, releases the device and closes infrastructure.
func (s *WearableSyncService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping wearable-sync service")

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down server: %w", err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeInfra()

	s.logger.Info("Wearable-sync service stopped")
	return errors.Join(errs...)
}

func (s *WearableSyncService) closeInfra() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
		s.mqttClient = nil
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Error closing redis", zap.Error(err))
		}
		s.redis = nil
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
		s.db = nil
	}
}
