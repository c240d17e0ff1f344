package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/transport"
)

const CustomSendPath = "/cgi-bin/message/custom/send"

// CredentialSource supplies and renews the access token for API calls.
type CredentialSource interface {
	core.CredentialProvider
	Refresh(ctx context.Context) (core.Credential, error)
}

type Client struct {
	Transport   JSONDoer
	Credentials CredentialSource
	Timeout     time.Duration

	observer core.Observer
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.Timeout = timeout
	}
}

func WithObserver(observer core.Observer) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

func NewClient(transport JSONDoer, credentials CredentialSource, opts ...ClientOption) *Client {
	c := &Client{Transport: transport, Credentials: credentials}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// NewClientFromConfig roots a REST adapter at cfg.Platform.BaseURL.
func NewClientFromConfig(cfg core.Config, credentials CredentialSource, httpClient transport.HTTPDoer, opts ...ClientOption) *Client {
	base := []ClientOption{WithTimeout(cfg.Fetch.Timeout)}
	return NewClient(transport.NewRESTAdapter(httpClient, cfg.Platform.BaseURL), credentials, append(base, opts...)...)
}

// Do calls path with the current access token. A JSON body is encoded from
// body when non-nil; the response is decoded into out when non-nil. When
// the platform reports a token-invalid errcode the credential is refreshed
// and the call is retried once.
func (c *Client) Do(ctx context.Context, method string, path string, query map[string]string, body any, out any) (err error) {
	if c == nil || c.Transport == nil || c.Credentials == nil {
		return platformBadInput("platform: client requires transport and credentials", nil)
	}
	startedAt := time.Now()
	fields := map[string]any{"method": strings.ToUpper(method), "path": path}
	defer func() {
		c.observer.Observe(ctx, startedAt, "platform_call", err, fields)
	}()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return platformBadInput("platform: encode request body", map[string]any{"error": err.Error()})
		}
	}

	credential, err := c.Credentials.GetValidCredential(ctx)
	if err != nil {
		return err
	}
	raw, err := c.call(ctx, method, path, query, payload, credential)
	if apiErr, ok := AsAPIError(err); ok && apiErr.TokenInvalid() {
		fields["refreshed"] = true
		credential, err = c.Credentials.Refresh(ctx)
		if err != nil {
			return err
		}
		raw, err = c.call(ctx, method, path, query, payload, credential)
	}
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformedResponse("platform: decode response", err)
	}
	return nil
}

func (c *Client) call(
	ctx context.Context,
	method string,
	path string,
	query map[string]string,
	payload []byte,
	credential core.Credential,
) (json.RawMessage, error) {
	params := make(map[string]string, len(query)+1)
	for key, value := range query {
		params[key] = value
	}
	params["access_token"] = credential.Token

	var raw json.RawMessage
	_, err := c.Transport.DoJSON(ctx, core.TransportRequest{
		Method:  method,
		URL:     path,
		Query:   params,
		Body:    payload,
		Timeout: c.Timeout,
	}, &raw)
	if err != nil {
		return nil, err
	}
	var apiErr APIError
	// only object bodies carry the errcode envelope
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &apiErr); err != nil {
			return nil, malformedResponse("platform: decode errcode envelope", err)
		}
	}
	if apiErr.ErrCode != 0 {
		return nil, platformError("platform: api call rejected", apiErr, map[string]any{"path": path})
	}
	return raw, nil
}

type textMessage struct {
	ToUser  string      `json:"touser"`
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

// SendText pushes a customer-service text message to openID.
func (c *Client) SendText(ctx context.Context, openID string, content string) error {
	openID = strings.TrimSpace(openID)
	if openID == "" {
		return platformBadInput("platform: open id is required", nil)
	}
	if content == "" {
		return platformBadInput("platform: content is required", map[string]any{"to_user": openID})
	}
	return c.Do(ctx, http.MethodPost, CustomSendPath, nil, textMessage{
		ToUser:  openID,
		MsgType: "text",
		Text:    textContent{Content: content},
	}, nil)
}
