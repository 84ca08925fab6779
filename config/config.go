package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Tts      TtsConfig      `mapstructure:"tts"`
	Device   DeviceConfig   `mapstructure:"device"`
	Audio    AudioConfig    `mapstructure:"audio"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Ollama   OllamaConfig   `mapstructure:"ollama"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SessionSecret  string   `mapstructure:"session_secret"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// TtsConfig selects the premium cloud narrator. The device engine is always
// available as the fallback path.
type TtsConfig struct {
	CloudProvider string           `mapstructure:"cloud_provider"` // "elevenlabs", "google" or "none"
	CacheAudio    bool             `mapstructure:"cache_audio"`
	ElevenLabs    ElevenLabsConfig `mapstructure:"elevenlabs"`
	Google        GoogleConfig     `mapstructure:"google"`
}

type ElevenLabsConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	VoiceID           string  `mapstructure:"voice_id"`
	VoiceName         string  `mapstructure:"voice_name"`
	ModelID           string  `mapstructure:"model_id"`
	Stability         float64 `mapstructure:"stability"`
	SimilarityBoost   float64 `mapstructure:"similarity_boost"`
	Style             float64 `mapstructure:"style"`
	UseSpeakerBoost   bool    `mapstructure:"use_speaker_boost"`
	Timeout           int     `mapstructure:"timeout"` // seconds
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	VoiceName       string `mapstructure:"voice_name"` // e.g. "en-GB-Chirp-HD-D"
	DisplayName     string `mapstructure:"display_name"`
}

// DeviceConfig configures the local speech engine.
type DeviceConfig struct {
	Driver          string `mapstructure:"driver"` // "espeak", "say" or "" for the platform default
	Binary          string `mapstructure:"binary"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// AudioConfig configures playback of decoded cloud audio.
type AudioConfig struct {
	Player        string   `mapstructure:"player"`
	PlayerArgs    []string `mapstructure:"player_args"`
	AllowPlayback bool     `mapstructure:"allow_playback"`
}

// LLM provider selection
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // "ollama" or "openai"
}

type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	VisionModel string `mapstructure:"vision_model"`
	BaseURL     string `mapstructure:"base_url"`   // Optional, defaults to OpenAI API
	MaxTokens   int    `mapstructure:"max_tokens"` // Optional, defaults to model's max
	Timeout     int    `mapstructure:"timeout"`
}

type OllamaConfig struct {
	Host        string `mapstructure:"host"`
	Model       string `mapstructure:"model"`
	VisionModel string `mapstructure:"vision_model"`
	Timeout     int    `mapstructure:"timeout"` // seconds
}

// Load reads config.yaml (and an optional config.local.yaml overlay), the
// environment and defaults. An explicit path replaces the search.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.BindEnv("tts.elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.provider", "LLM_PROVIDER")

	// Allow environment variables
	v.SetEnvPrefix("NARRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found, use defaults
	} else if path == "" {
		// Read local config file for overrides (ignored by git)
		v.SetConfigName("config.local")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Tts.ElevenLabs.APIKey = resolveEnvRef(cfg.Tts.ElevenLabs.APIKey)
	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)
	cfg.Server.SessionSecret = resolveEnvRef(cfg.Server.SessionSecret)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("server.session_secret", "change-this-session-secret")

	v.SetDefault("logging.level", "info")

	v.SetDefault("database.path", "./narrator.db")

	v.SetDefault("tts.cloud_provider", "elevenlabs")
	v.SetDefault("tts.cache_audio", true)
	v.SetDefault("tts.elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("tts.elevenlabs.voice_name", "Charles")
	v.SetDefault("tts.elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.elevenlabs.stability", 0.5)
	v.SetDefault("tts.elevenlabs.similarity_boost", 0.75)
	v.SetDefault("tts.elevenlabs.style", 0.3)
	v.SetDefault("tts.elevenlabs.use_speaker_boost", true)
	v.SetDefault("tts.elevenlabs.timeout", 30)
	v.SetDefault("tts.elevenlabs.requests_per_minute", 20)
	v.SetDefault("tts.google.voice_name", "en-US-Chirp-HD-D")
	v.SetDefault("tts.google.display_name", "Charles")

	v.SetDefault("device.driver", "")
	v.SetDefault("device.default_language", "en-US")

	v.SetDefault("audio.player", "")
	v.SetDefault("audio.allow_playback", true)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("ollama.vision_model", "llava")
	v.SetDefault("ollama.timeout", 50)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.timeout", 30)
	v.SetDefault("openai.max_tokens", 1000)
}

// resolveEnvRef replaces "${VAR_NAME}" values with the named environment variable.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		if envVal := os.Getenv(val[2 : len(val)-1]); envVal != "" {
			return envVal
		}
	}
	return val
}
