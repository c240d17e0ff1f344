package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WeChatErrorVerificationFailed = "WECHAT_VERIFICATION_FAILED"
	WeChatErrorStoreIOFailed      = "WECHAT_STORE_IO_FAILED"
	WeChatErrorCredentialAbsent   = "WECHAT_CREDENTIAL_ABSENT"
	WeChatErrorRemoteFetchFailed  = "WECHAT_REMOTE_FETCH_FAILED"
	WeChatErrorPlatform           = "WECHAT_PLATFORM_ERROR"
	WeChatErrorPayloadParseFailed = "WECHAT_PAYLOAD_PARSE_FAILED"
	WeChatErrorBadInput           = "WECHAT_BAD_INPUT"
	WeChatErrorInternal           = "WECHAT_INTERNAL_ERROR"
	metadataRetryable             = "retryable"
	defaultInternalFailureMessage = "An unexpected error occurred"
)

var ErrCredentialAbsent = errors.New("core: credential slot is empty")

// CredentialAbsentError is returned by stores when the slot has never been written.
func CredentialAbsentError(store string) error {
	return goerrors.Wrap(ErrCredentialAbsent, goerrors.CategoryNotFound, "core: no credential stored").
		WithCode(http.StatusNotFound).
		WithTextCode(WeChatErrorCredentialAbsent).
		WithMetadata(map[string]any{"store": strings.TrimSpace(store)})
}

// StoreIOError reports an unreadable or unwritable credential medium.
func StoreIOError(message string, source error, metadata map[string]any) error {
	return storeIOError(message, source, metadata)
}

// RemoteFetchError reports a token endpoint failure.
func RemoteFetchError(message string, source error, metadata map[string]any) error {
	return remoteFetchError(message, source, metadata)
}

func storeIOError(message string, source error, metadata map[string]any) error {
	return newWeChatError(source, message, goerrors.CategoryOperation, http.StatusInternalServerError, WeChatErrorStoreIOFailed, metadata)
}

func remoteFetchError(message string, source error, metadata map[string]any) error {
	return newWeChatError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, WeChatErrorRemoteFetchFailed, metadata)
}

func internalError(message string) error {
	return newWeChatError(nil, message, goerrors.CategoryInternal, http.StatusInternalServerError, WeChatErrorInternal, nil)
}

func newWeChatError(
	source error,
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(RedactSensitiveMap(metadata))
	}
	return err
}

func IsCredentialAbsent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCredentialAbsent) {
		return true
	}
	return hasTextCode(err, WeChatErrorCredentialAbsent)
}

func IsStoreIOFailure(err error) bool {
	return hasTextCode(err, WeChatErrorStoreIOFailed)
}

func IsRemoteFetchFailure(err error) bool {
	return hasTextCode(err, WeChatErrorRemoteFetchFailed) || hasTextCode(err, WeChatErrorPlatform)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

// IsRetryable reports whether a fetch failure is worth a second attempt.
// Platform errcodes and malformed responses are not; network failures are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if value, ok := richErr.Metadata[metadataRetryable].(bool); ok {
			return value
		}
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation,
			goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return false
		}
		if strings.EqualFold(richErr.TextCode, WeChatErrorPlatform) {
			return false
		}
	}
	return true
}

func weChatErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWeChatErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return ensureWeChatErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(WeChatErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWeChatErrorEnvelope(mapped)
}

func ensureWeChatErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = weChatHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWeChatTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = defaultInternalFailureMessage
	}
	return err
}

func defaultWeChatTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return WeChatErrorBadInput
	case goerrors.CategoryNotFound:
		return WeChatErrorCredentialAbsent
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return WeChatErrorVerificationFailed
	case goerrors.CategoryExternal:
		return WeChatErrorRemoteFetchFailed
	case goerrors.CategoryOperation:
		return WeChatErrorStoreIOFailed
	default:
		return WeChatErrorInternal
	}
}

func weChatHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
