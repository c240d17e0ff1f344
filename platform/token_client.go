package platform

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/transport"
)

const (
	TokenPath                 = "/cgi-bin/token"
	GrantTypeClientCredential = "client_credential"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	APIError
}

// JSONDoer is the transport the platform clients send through.
type JSONDoer interface {
	DoJSON(ctx context.Context, req core.TransportRequest, out any) (core.TransportResponse, error)
}

// TokenClient fetches access tokens with the appid/secret pair.
type TokenClient struct {
	Transport JSONDoer
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

func NewTokenClient(transport JSONDoer, appID string, appSecret string) *TokenClient {
	return &TokenClient{
		Transport: transport,
		AppID:     strings.TrimSpace(appID),
		AppSecret: strings.TrimSpace(appSecret),
	}
}

// NewTokenClientFromConfig builds a TokenClient on a REST adapter rooted at
// cfg.Platform.BaseURL. httpClient may be nil.
func NewTokenClientFromConfig(cfg core.Config, httpClient transport.HTTPDoer) (*TokenClient, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, platformBadInput("platform: app_id and app_secret are required", map[string]any{
			"app_id": cfg.AppID,
		})
	}
	client := NewTokenClient(transport.NewRESTAdapter(httpClient, cfg.Platform.BaseURL), cfg.AppID, cfg.AppSecret)
	client.Timeout = cfg.Fetch.Timeout
	return client, nil
}

func (c *TokenClient) FetchToken(ctx context.Context) (core.TokenGrant, error) {
	if c == nil || c.Transport == nil {
		return core.TokenGrant{}, platformBadInput("platform: token client requires a transport", nil)
	}
	if c.AppID == "" || c.AppSecret == "" {
		return core.TokenGrant{}, platformBadInput("platform: app_id and app_secret are required", nil)
	}

	var payload tokenResponse
	_, err := c.Transport.DoJSON(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    TokenPath,
		Query: map[string]string{
			"grant_type": GrantTypeClientCredential,
			"appid":      c.AppID,
			"secret":     c.AppSecret,
		},
		Timeout: c.Timeout,
	}, &payload)
	if err != nil {
		return core.TokenGrant{}, err
	}
	if payload.ErrCode != 0 {
		return core.TokenGrant{}, platformError("platform: token endpoint rejected the request", payload.APIError, map[string]any{
			"app_id": c.AppID,
		})
	}
	if strings.TrimSpace(payload.AccessToken) == "" || payload.ExpiresIn <= 0 {
		return core.TokenGrant{}, malformedResponse("platform: token response is missing access_token or expires_in", nil)
	}
	return core.TokenGrant{
		AccessToken: payload.AccessToken,
		ExpiresIn:   time.Duration(payload.ExpiresIn) * time.Second,
	}, nil
}

var _ core.TokenFetcher = (*TokenClient)(nil)
