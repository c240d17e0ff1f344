package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wechat/core"
)

const KindREST = "rest"

const (
	defaultRESTClientTimeout         = 10 * time.Second
	defaultRESTResponseBodyLimit     = int64(1 << 20)
	defaultRESTErrorBodyPreviewBytes = 256
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter sends requests to the platform API. Relative URLs resolve
// against BaseURL.
type RESTAdapter struct {
	Client               HTTPDoer
	BaseURL              string
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewRESTAdapter(client HTTPDoer, baseURL string) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	return &RESTAdapter{
		Client:  client,
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		DefaultHeaders: map[string]string{
			"Accept": "application/json",
		},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := a.resolveURL(req.URL)
	if err != nil {
		return core.TransportResponse{}, err
	}

	query := target.Query()
	for key, value := range req.Query {
		if strings.TrimSpace(key) == "" {
			continue
		}
		query.Set(strings.TrimSpace(key), value)
	}
	target.RawQuery = query.Encode()
	// the query carries secret and access_token; never log it
	safeURL := target.Scheme + "://" + target.Host + target.Path

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(requestCtx, method, target.String(), body)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			redactURLError(err, safeURL),
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "method": method, "url": safeURL},
		)
	}
	for key, value := range a.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		metadata := map[string]any{"adapter": KindREST, "method": method, "url": safeURL}
		if errors.Is(ctx.Err(), context.Canceled) {
			// a caller deadline is left to the retry loop that owns it
			metadata["retryable"] = false
		}
		return core.TransportResponse{}, transportWrapError(
			redactURLError(err, safeURL),
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			metadata,
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode},
		)
	}
	if int64(len(payload)) > maxBodyBytes {
		return core.TransportResponse{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":          KindREST,
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
				"retryable":        false,
			},
		)
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       payload,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
			"url":         safeURL,
		},
	}, nil
}

// DoJSON sends req and decodes a 2xx JSON body into out. Non-2xx responses
// become External errors; 5xx and 429 are marked retryable.
func (a *RESTAdapter) DoJSON(ctx context.Context, req core.TransportRequest, out any) (core.TransportResponse, error) {
	res, err := a.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res, StatusError(res)
	}
	if out == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return res, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: decode json response",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": res.StatusCode, "retryable": false},
		)
	}
	return res, nil
}

// StatusError builds the error envelope for a non-2xx response.
func StatusError(res core.TransportResponse) error {
	preview := string(res.Body)
	if len(preview) > defaultRESTErrorBodyPreviewBytes {
		preview = preview[:defaultRESTErrorBodyPreviewBytes]
	}
	return transportError(
		fmt.Sprintf("transport: unexpected status %d", res.StatusCode),
		goerrors.CategoryExternal,
		http.StatusBadGateway,
		map[string]any{
			"adapter":     KindREST,
			"status_code": res.StatusCode,
			"body":        preview,
			"retryable":   isRetryableStatus(res.StatusCode),
		},
	)
}

func isRetryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func (a *RESTAdapter) resolveURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, transportError(
			"transport: request url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	if !strings.Contains(raw, "://") && a.BaseURL != "" {
		raw = a.BaseURL + "/" + strings.TrimLeft(raw, "/")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host")
		}
		return nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	return parsed, nil
}

// redactURLError rewrites the URL of a *url.Error in err to safeURL so the
// error text never carries the query string.
func redactURLError(err error, safeURL string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = safeURL
	}
	return err
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
