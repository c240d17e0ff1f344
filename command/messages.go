package command

import (
	"strings"
	"unicode/utf8"
)

const (
	TypeRefreshCredential    = "wechat.command.credential.refresh"
	TypeInvalidateCredential = "wechat.command.credential.invalidate"
	TypeSendText             = "wechat.command.message.send_text"
)

const maxReasonLength = 256

type RefreshCredentialMessage struct {
	Reason string
}

func (RefreshCredentialMessage) Type() string { return TypeRefreshCredential }

func (m RefreshCredentialMessage) Validate() error {
	if utf8.RuneCountInString(m.Reason) > maxReasonLength {
		return commandValidationError("reason", "must be at most 256 characters")
	}
	return nil
}

type InvalidateCredentialMessage struct{}

func (InvalidateCredentialMessage) Type() string { return TypeInvalidateCredential }

type SendTextMessage struct {
	OpenID  string
	Content string
}

func (SendTextMessage) Type() string { return TypeSendText }

func (m SendTextMessage) Validate() error {
	if strings.TrimSpace(m.OpenID) == "" {
		return commandValidationError("open_id", "is required")
	}
	if m.Content == "" {
		return commandValidationError("content", "is required")
	}
	return nil
}
