package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Assist   AssistConfig   `yaml:"assist"`
	Publish  PublishConfig  `yaml:"publish"`
	Store    StoreConfig    `yaml:"store"`
	Media    MediaConfig    `yaml:"media"`
	Markdown MarkdownConfig `yaml:"markdown"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type AutosaveConfig struct {
	BodyIntervalMs  int `yaml:"body_interval_ms" default:"3000"`
	TitleIntervalMs int `yaml:"title_interval_ms" default:"1000"`
}

func (c AutosaveConfig) BodyInterval() time.Duration {
	return time.Duration(c.BodyIntervalMs) * time.Millisecond
}

func (c AutosaveConfig) TitleInterval() time.Duration {
	return time.Duration(c.TitleIntervalMs) * time.Millisecond
}

type AssistConfig struct {
	Provider       string `yaml:"provider" default:"http"`
	Endpoint       string `yaml:"endpoint" default:"http://localhost:8080/api/ai"`
	Model          string `yaml:"model" default:"gpt-4o-mini"`
	APIKeyEnv      string `yaml:"api_key_env" default:"OPENAI_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"60"`
}

func (c AssistConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PublishConfig struct {
	Endpoint       string `yaml:"endpoint" default:"http://localhost:8080/api/publish"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"30"`
	SigningKey     string `yaml:"signing_key" default:""`
}

func (c PublishConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Driver      string `yaml:"driver" default:"memory"`
	Path        string `yaml:"path" default:"./drafts"`
	Database    string `yaml:"database" default:"./drafts.db"`
	RedisURL    string `yaml:"redis_url" default:"redis://localhost:6379/0"`
	Compression string `yaml:"compression" default:"zstd"`
}

type MediaConfig struct {
	Enabled         bool   `yaml:"enabled" default:"false"`
	Endpoint        string `yaml:"endpoint" default:""`
	Bucket          string `yaml:"bucket" default:""`
	PublicURL       string `yaml:"public_url" default:""`
	AccessKeyID     string `yaml:"access_key_id" default:""`
	AccessKeySecret string `yaml:"access_key_secret" default:""`
	Region          string `yaml:"region" default:"auto"`
}

type MarkdownConfig struct {
	Renderer string `yaml:"renderer" default:"mmark"`
}

const (
	EnvAutosaveBodyMs  = "COMPOSER_AUTOSAVE_BODY_MS"
	EnvAutosaveTitleMs = "COMPOSER_AUTOSAVE_TITLE_MS"
	EnvAssistEndpoint  = "COMPOSER_AI_ENDPOINT"
	EnvPublishEndpoint = "COMPOSER_PUBLISH_ENDPOINT"
	EnvMediaAccessKey  = "COMPOSER_MEDIA_ACCESS_KEY_ID"
	EnvMediaSecretKey  = "COMPOSER_MEDIA_ACCESS_KEY_SECRET"
)

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

// applyEnv lets the environment override the values operators tune most often.
func applyEnv(config *Config) error {
	for env, dst := range map[string]*int{
		EnvAutosaveBodyMs:  &config.Autosave.BodyIntervalMs,
		EnvAutosaveTitleMs: &config.Autosave.TitleIntervalMs,
	} {
		raw, ok := os.LookupEnv(env)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", env, raw, err)
		}
		*dst = v
	}

	for env, dst := range map[string]*string{
		EnvAssistEndpoint:  &config.Assist.Endpoint,
		EnvPublishEndpoint: &config.Publish.Endpoint,
		EnvMediaAccessKey:  &config.Media.AccessKeyID,
		EnvMediaSecretKey:  &config.Media.AccessKeySecret,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Autosave.BodyIntervalMs <= 0 || c.Autosave.TitleIntervalMs <= 0 {
		return fmt.Errorf("autosave intervals must be positive, got body=%d title=%d",
			c.Autosave.BodyIntervalMs, c.Autosave.TitleIntervalMs)
	}
	switch c.Store.Driver {
	case "memory", "fs", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Assist.Provider {
	case "http", "openai":
	default:
		return fmt.Errorf("unknown assist provider %q", c.Assist.Provider)
	}
	switch c.Markdown.Renderer {
	case "mmark", "classic":
	default:
		return fmt.Errorf("unknown markdown renderer %q", c.Markdown.Renderer)
	}
	if c.Media.Enabled && c.Media.Bucket == "" {
		return fmt.Errorf("media is enabled but no bucket is configured")
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
