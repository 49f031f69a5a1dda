// Package app assembles the engine from its configuration: store, ledger,
// stages, orchestrator and the optional MQTT connection.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AaronLay10/DiagramEngine/internal/codegen"
	"github.com/AaronLay10/DiagramEngine/internal/config"
	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/ledger"
	"github.com/AaronLay10/DiagramEngine/internal/llm"
	"github.com/AaronLay10/DiagramEngine/internal/mqtt"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
	"github.com/AaronLay10/DiagramEngine/internal/storage"
	"github.com/AaronLay10/DiagramEngine/internal/storage/cache"
	"github.com/AaronLay10/DiagramEngine/internal/storage/memory"
	"github.com/AaronLay10/DiagramEngine/internal/storage/postgres"
	"github.com/AaronLay10/DiagramEngine/internal/storage/sqlite"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        storage.Store
	Ledger       *ledger.Ledger
	Orchestrator *orchestrator.Orchestrator

	mqtt     *mqtt.Client
	requests *mqtt.RunRequestSubscriber
}

// NewLogger returns a production logger, at debug level when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// New wires the engine. The MQTT connection is created but not dialed;
// call Start.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Store: store}

	if cfg.Storage.DraftCacheSize > 0 {
		cached, err := cache.NewDrafts(store, cfg.Storage.DraftCacheSize)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.Store = cached
	}

	a.Ledger = ledger.New(a.Store, logger.Named("ledger"))

	mode, err := orchestrator.ParseMode(cfg.Pipeline.Mode)
	if err != nil {
		store.Close()
		return nil, err
	}

	genOpts := []codegen.Option{codegen.WithTemperature(cfg.Temperature())}
	if cfg.Pipeline.DelegateSVG || mode == orchestrator.ModeSVGOnly {
		settings, err := cfg.LLMSettings()
		if err != nil {
			store.Close()
			return nil, err
		}
		chat, err := llm.New(ctx, settings)
		if err != nil {
			store.Close()
			return nil, err
		}
		genOpts = append(genOpts, codegen.WithChat(chat))
		logger.Info("svg generation delegated", zap.String("provider", settings.Provider), zap.String("model", settings.Model))
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Deps{
		Ledger:    a.Ledger,
		Drafts:    a.Store,
		Generator: codegen.New(genOpts...),
		Logger:    logger.Named("orchestrator"),
	}, orchestrator.WithMode(mode))
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.MQTT.Enabled {
		a.mqtt = mqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger.Named("mqtt"))
		logger.Info("mqtt enabled", zap.String("broker", a.mqtt.Broker()), zap.String("topic_prefix", cfg.MQTT.TopicPrefix))
		topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
		a.requests = mqtt.NewRunRequestSubscriber(a.mqtt, topics, a.Orchestrator, logger.Named("mqtt"))
		events.SetSink(mqtt.NewEventPublisher(a.mqtt, topics))
	}
	return a, nil
}

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.Storage.DSN)
	case config.DriverSQLite:
		return sqlite.Open(cfg.Storage.SQLitePath)
	}
	return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
}

// Start dials the MQTT broker when enabled. A broker that cannot be
// reached is logged; the engine keeps serving without it.
func (a *App) Start() {
	if a.mqtt == nil {
		return
	}
	a.mqtt.Start(a.requests)
}

// MQTTConnected reports the broker connection state. It is false when
// MQTT is disabled.
func (a *App) MQTTConnected() bool {
	return a.mqtt != nil && a.mqtt.IsConnected()
}

// MQTTEnabled reports whether an MQTT connection is configured.
func (a *App) MQTTEnabled() bool { return a.mqtt != nil }

// Close stops MQTT intake, waits for in-flight requests to reply, and
// only then releases the broker connection and the store.
func (a *App) Close() error {
	if a.requests != nil {
		a.requests.Close()
	}
	if a.mqtt != nil {
		events.SetSink(nil)
		a.mqtt.Disconnect()
	}
	return a.Store.Close()
}
