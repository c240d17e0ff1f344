package webhooks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goliatone/go-wechat/core"
)

type HTTPHandler struct {
	processor    *Processor
	maxBodyBytes int64
	observer     core.Observer
}

type HTTPHandlerOption func(*HTTPHandler)

func WithMaxBodyBytes(limit int64) HTTPHandlerOption {
	return func(h *HTTPHandler) {
		h.maxBodyBytes = limit
	}
}

func WithHandlerObserver(observer core.Observer) HTTPHandlerOption {
	return func(h *HTTPHandler) {
		h.observer = observer
	}
}

// NewHTTPHandler adapts a Processor to net/http. It answers 200 in every
// case, including body read failures and recovered panics.
func NewHTTPHandler(processor *Processor, opts ...HTTPHandlerOption) *HTTPHandler {
	h := &HTTPHandler{
		processor:    processor,
		maxBodyBytes: core.DefaultWebhookMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := h.process(r)
	if err != nil {
		h.observer.Log(r.Context(), "error", "webhook request failed", map[string]any{
			"method": r.Method,
			"error":  err.Error(),
		})
		w.WriteHeader(http.StatusOK)
		return
	}
	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Body)
}

func (h *HTTPHandler) process(r *http.Request) (result core.InboundResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("webhooks: recovered panic: %v", recovered)
		}
	}()
	if h == nil || h.processor == nil {
		return core.InboundResult{}, fmt.Errorf("webhooks: processor is not configured")
	}
	body, err := readBody(r.Body, h.maxBodyBytes)
	if err != nil {
		return core.InboundResult{}, err
	}
	req := core.InboundRequest{
		Method:  r.Method,
		Query:   firstValues(r.URL.Query()),
		Headers: firstValues(r.Header),
		Body:    body,
		Metadata: map[string]any{
			"remote_addr": r.RemoteAddr,
		},
	}
	return h.processor.Process(r.Context(), req), nil
}

func readBody(body io.ReadCloser, limit int64) ([]byte, error) {
	if body == nil {
		return []byte{}, nil
	}
	defer body.Close()
	if limit <= 0 {
		limit = core.DefaultWebhookMaxBodyBytes
	}
	payload, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("webhooks: read request body: %w", err)
	}
	if int64(len(payload)) > limit {
		return nil, fmt.Errorf("webhooks: request body exceeds %d bytes", limit)
	}
	return bytes.TrimSpace(payload), nil
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) > 0 {
			out[key] = list[0]
		}
	}
	return out
}
