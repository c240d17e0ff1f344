package webhooks

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wechat/core"
)

func webhookError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(core.RedactSensitiveMap(metadata))
	}
	return err
}

func verificationFailure(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryAuth,
		http.StatusUnauthorized,
		core.WeChatErrorVerificationFailed,
		metadata,
	)
}

func webhookBadInput(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.WeChatErrorBadInput,
		metadata,
	)
}

// IsVerificationFailure reports whether err came from a signature check.
func IsVerificationFailure(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == core.WeChatErrorVerificationFailed
}
