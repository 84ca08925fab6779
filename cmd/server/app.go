package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/audio"
	"github.com/tahcohcat/monument-narrator/internal/database"
	"github.com/tahcohcat/monument-narrator/internal/device"
	"github.com/tahcohcat/monument-narrator/internal/llm"
	"github.com/tahcohcat/monument-narrator/internal/llm/providers"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/narration"
	"github.com/tahcohcat/monument-narrator/internal/permission"
	"github.com/tahcohcat/monument-narrator/internal/services"
	"github.com/tahcohcat/monument-narrator/internal/tts"
	"github.com/tahcohcat/monument-narrator/internal/tts/elevenlabs"
	"github.com/tahcohcat/monument-narrator/internal/tts/google"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

type configLoader func() (*config.Config, error)

// app holds the narration stack shared by the server and the CLI commands.
type app struct {
	cfg         *config.Config
	db          *database.DB
	cache       *services.AudioCache
	cloud       tts.CloudSynthesizer
	engine      *device.CommandEngine
	player      *audio.CommandPlayer
	gate        *permission.Gate
	registry    *voice.Registry
	coordinator *narration.Coordinator
	llm         llm.LLM

	closers []func() error
	logger  *logger.Log
}

// newApp wires every component and discovers the voices. Alerts raised by the
// permission gate go to alerter.
func newApp(ctx context.Context, cfg *config.Config, alerter permission.Alerter) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger.New().WithField("component", "app"),
	}

	if cfg.Tts.CacheAudio {
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.cache = services.NewAudioCache(db)
		a.closers = append(a.closers, db.Close)
	}

	cloud, closeCloud, err := newCloud(ctx, cfg.Tts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cloud = cloud
	if closeCloud != nil {
		a.closers = append(a.closers, closeCloud)
	}

	engine, err := device.NewCommandEngine(cfg.Device)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create device engine: %w", err)
	}
	if err := engine.Available(); err != nil {
		a.logger.WithError(err).Warn("device speech engine unavailable, narration will fail without the cloud voice")
	}
	a.engine = engine

	a.player = audio.NewCommandPlayer(cfg.Audio)
	a.gate = permission.NewGate(permission.NewHostPlatform(cfg.Audio.AllowPlayback, a.player), alerter)
	a.registry = voice.NewRegistry(a.cloud, a.engine, a.gate)
	a.registry.Initialize(ctx)

	deps := narration.Deps{
		Voices:     a.registry,
		Cloud:      a.cloud,
		Player:     a.player,
		Engine:     a.engine,
		Permission: a.gate,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}
	a.coordinator = narration.NewCoordinator(deps)

	if client, err := providers.NewLLMClient(cfg); err != nil {
		a.logger.WithError(err).Warn("monument guide disabled")
	} else {
		a.llm = client
	}

	return a, nil
}

// newCloud builds the configured premium provider. A provider that cannot be
// set up degrades to Unconfigured so narration still works on the device.
func newCloud(ctx context.Context, cfg config.TtsConfig) (tts.CloudSynthesizer, func() error, error) {
	log := logger.New().WithField("component", "app")

	switch strings.ToLower(strings.TrimSpace(cfg.CloudProvider)) {
	case "elevenlabs":
		client := elevenlabs.NewClient(cfg.ElevenLabs)
		if !client.Configured() {
			log.Info("ElevenLabs api key or voice id not set, using the device voice only")
		}
		return client, nil, nil

	case "google":
		client, err := google.NewClient(ctx, cfg.Google)
		if err != nil {
			log.WithError(err).Warn("Google TTS unavailable, using the device voice only")
			return tts.NewUnconfigured(), nil, nil
		}
		return client, client.Close, nil

	case "", "none":
		return tts.NewUnconfigured(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cloud tts provider: %s", cfg.CloudProvider)
	}
}

// Close stops any narration and releases resources in reverse order.
func (a *app) Close() {
	if a.coordinator != nil {
		a.coordinator.ForceCleanup()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("failed to release resource")
		}
	}
	a.closers = nil
}
