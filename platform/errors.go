package platform

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wechat/core"
)

// Platform errcodes with client-visible meaning.
const (
	ErrCodeSystemBusy         = -1
	ErrCodeInvalidCredential  = 40001
	ErrCodeInvalidAccessToken = 40014
	ErrCodeAccessTokenExpired = 42001
)

// APIError is the errcode/errmsg pair returned in a platform response body.
type APIError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("platform: errcode %d: %s", e.ErrCode, e.ErrMsg)
}

// TokenInvalid reports whether the errcode means the access token must be
// replaced before the call can succeed.
func (e APIError) TokenInvalid() bool {
	switch e.ErrCode {
	case ErrCodeInvalidCredential, ErrCodeInvalidAccessToken, ErrCodeAccessTokenExpired:
		return true
	default:
		return false
	}
}

func platformError(message string, apiErr APIError, metadata map[string]any) error {
	fields := map[string]any{
		"errcode":   apiErr.ErrCode,
		"errmsg":    apiErr.ErrMsg,
		"retryable": apiErr.ErrCode == ErrCodeSystemBusy,
	}
	for key, value := range metadata {
		fields[key] = value
	}
	return goerrors.Wrap(apiErr, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.WeChatErrorPlatform).
		WithMetadata(core.RedactSensitiveMap(fields))
}

func platformBadInput(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.WeChatErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(core.RedactSensitiveMap(metadata))
	}
	return err
}

func malformedResponse(message string, source error) error {
	return core.RemoteFetchError(message, source, map[string]any{"retryable": false})
}

// AsAPIError extracts the platform errcode from err.
func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if goerrors.As(err, &apiErr) {
		return apiErr, true
	}
	return APIError{}, false
}
