package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const configFileEnvVar = "ADMIN_CONFIG"

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
}

// Settings is the raw configuration document. It can be supplied as a yaml file
// (ADMIN_CONFIG) and every field can be overridden from the environment.
type Settings struct {
	Env     EnvVars `yaml:"app"`
	API     API     `yaml:"api"`
	Storage Storage `yaml:"storage"`
}

type mainConfig struct {
	EnvVars
	API
	Storage
}

// Load reads the optional yaml file named by ADMIN_CONFIG, then the environment,
// applies defaults and validates the result.
func Load() (Config, error) {
	var s Settings
	if path := GetEnv(configFileEnvVar, ""); path != "" {
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return nil, fmt.Errorf("[config Load] reading %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("[config Load] reading environment: %w", err)
	}
	return New(s)
}

// New validates s and wraps it in a Config.
func New(s Settings) (Config, error) {
	s.API.BaseURL = strings.TrimRight(strings.TrimSpace(s.API.BaseURL), "/")
	s.Storage.Backend = strings.ToLower(strings.TrimSpace(s.Storage.Backend))
	if err := validate(s); err != nil {
		return nil, err
	}
	return mainConfig{EnvVars: s.Env, API: s.API, Storage: s.Storage}, nil
}

func validate(s Settings) error {
	if s.API.BaseURL == "" {
		return fmt.Errorf("[config] api base url is required")
	}
	if !strings.HasPrefix(s.API.BaseURL, "http://") && !strings.HasPrefix(s.API.BaseURL, "https://") {
		return fmt.Errorf("[config] api base url must be http(s): %q", s.API.BaseURL)
	}
	if s.API.Timeout <= 0 {
		return fmt.Errorf("[config] api timeout must be positive")
	}
	switch s.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if s.Storage.Path == "" {
			return fmt.Errorf("[config] storage path is required for %s backend", s.Storage.Backend)
		}
	case BackendRedis:
		if s.Storage.RedisAddr == "" {
			return fmt.Errorf("[config] redis address is required for redis backend")
		}
	default:
		return fmt.Errorf("[config] unsupported credential backend %q", s.Storage.Backend)
	}
	return nil
}
