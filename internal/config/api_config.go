package config

import "time"

type APIConfig interface {
	GetBaseURL() string
	GetTimeout() time.Duration
	GetRefreshTimeout() time.Duration
	GetSuccessCode() int
}

type API struct {
	BaseURL        string        `yaml:"base_url" env:"ADMIN_API_BASE_URL" env-default:"http://localhost:8000"`
	Timeout        time.Duration `yaml:"timeout" env:"ADMIN_API_TIMEOUT" env-default:"30s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"ADMIN_API_REFRESH_TIMEOUT" env-default:"30s"`
	SuccessCode    int           `yaml:"success_code" env:"ADMIN_SUCCESS_CODE" env-default:"200"`
}

var _ APIConfig = API{}

func (a API) GetBaseURL() string {
	return a.BaseURL
}

// GetTimeout bounds every round trip so a queued request can never be left pending.
func (a API) GetTimeout() time.Duration {
	return a.Timeout
}

func (a API) GetRefreshTimeout() time.Duration {
	if a.RefreshTimeout <= 0 {
		return a.Timeout
	}
	return a.RefreshTimeout
}

func (a API) GetSuccessCode() int {
	if a.SuccessCode == 0 {
		return 200
	}
	return a.SuccessCode
}
