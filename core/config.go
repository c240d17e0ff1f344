package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

const (
	DefaultServiceName         = "wechat"
	DefaultPlatformBaseURL     = "https://api.weixin.qq.com"
	DefaultCredentialSlot      = "default"
	DefaultFetchTimeout        = 5 * time.Second
	MaxFetchTimeout            = 10 * time.Second
	DefaultFetchRetries        = 1
	DefaultFetchBackoff        = 200 * time.Millisecond
	DefaultResponseWindow      = 4500 * time.Millisecond
	DefaultRejectBody          = "error"
	DefaultWebhookMaxBodyBytes = int64(1 << 20)
	DefaultLoveKeyword         = "爱"
	DefaultRefreshSchedule     = "*/5 * * * *"
)

type PlatformConfig struct {
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
}

type CredentialConfig struct {
	SafetyMargin time.Duration `koanf:"safety_margin" mapstructure:"safety_margin"`
	Slot         string        `koanf:"slot" mapstructure:"slot"`
}

type FetchConfig struct {
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
	Retries int           `koanf:"retries" mapstructure:"retries"`
	Backoff time.Duration `koanf:"backoff" mapstructure:"backoff"`
}

type WebhookConfig struct {
	ResponseWindow time.Duration `koanf:"response_window" mapstructure:"response_window"`
	RejectBody     string        `koanf:"reject_body" mapstructure:"reject_body"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type DispatchConfig struct {
	LoveKeyword string `koanf:"love_keyword" mapstructure:"love_keyword"`
}

type RefreshConfig struct {
	Schedule string `koanf:"schedule" mapstructure:"schedule"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	AppID       string           `koanf:"app_id" mapstructure:"app_id"`
	AppSecret   string           `koanf:"app_secret" mapstructure:"app_secret"`
	Token       string           `koanf:"token" mapstructure:"token"`
	Platform    PlatformConfig   `koanf:"platform" mapstructure:"platform"`
	Credential  CredentialConfig `koanf:"credential" mapstructure:"credential"`
	Fetch       FetchConfig      `koanf:"fetch" mapstructure:"fetch"`
	Webhook     WebhookConfig    `koanf:"webhook" mapstructure:"webhook"`
	Dispatch    DispatchConfig   `koanf:"dispatch" mapstructure:"dispatch"`
	Refresh     RefreshConfig    `koanf:"refresh" mapstructure:"refresh"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Platform:    PlatformConfig{BaseURL: DefaultPlatformBaseURL},
		Credential: CredentialConfig{
			SafetyMargin: DefaultCredentialSafetyMargin,
			Slot:         DefaultCredentialSlot,
		},
		Fetch: FetchConfig{
			Timeout: DefaultFetchTimeout,
			Retries: DefaultFetchRetries,
			Backoff: DefaultFetchBackoff,
		},
		Webhook: WebhookConfig{
			ResponseWindow: DefaultResponseWindow,
			RejectBody:     DefaultRejectBody,
			MaxBodyBytes:   DefaultWebhookMaxBodyBytes,
		},
		Dispatch: DispatchConfig{LoveKeyword: DefaultLoveKeyword},
		Refresh:  RefreshConfig{Schedule: DefaultRefreshSchedule},
	}
}

// Validate checks structural settings. The handshake token is checked by
// the webhook processor, which is the only component that needs it.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Credential.SafetyMargin < 0 {
		return fmt.Errorf("core: credential.safety_margin must be >= 0")
	}
	if c.Fetch.Timeout <= 0 || c.Fetch.Timeout > MaxFetchTimeout {
		return fmt.Errorf("core: fetch.timeout must be within (0, %s]", MaxFetchTimeout)
	}
	if c.Fetch.Retries < 0 || c.Fetch.Retries > 1 {
		return fmt.Errorf("core: fetch.retries must be 0 or 1")
	}
	if c.Fetch.Backoff < 0 {
		return fmt.Errorf("core: fetch.backoff must be >= 0")
	}
	if err := validateBaseURL(c.Platform.BaseURL); err != nil {
		return err
	}
	if c.Webhook.ResponseWindow < 0 {
		return fmt.Errorf("core: webhook.response_window must be >= 0")
	}
	if c.Webhook.MaxBodyBytes < 0 {
		return fmt.Errorf("core: webhook.max_body_bytes must be >= 0")
	}
	if schedule := strings.TrimSpace(c.Refresh.Schedule); schedule != "" && !gronx.New().IsValid(schedule) {
		return fmt.Errorf("core: refresh.schedule %q is invalid", schedule)
	}
	return nil
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("core: platform.base_url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("core: platform.base_url %q is invalid", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: platform.base_url must be http or https")
	}
	return nil
}
