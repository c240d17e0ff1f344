package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wechat/core"
)

type TextSender interface {
	SendText(ctx context.Context, openID string, content string) error
}

// RefreshCredentialCommand forces a remote fetch. The new credential is
// stored in the context result collector when one is present.
type RefreshCredentialCommand struct {
	refresher core.CredentialRefresher
}

func NewRefreshCredentialCommand(refresher core.CredentialRefresher) *RefreshCredentialCommand {
	return &RefreshCredentialCommand{refresher: refresher}
}

func (c *RefreshCredentialCommand) Execute(ctx context.Context, msg RefreshCredentialMessage) error {
	if c == nil || c.refresher == nil {
		return commandDependencyError("command: credential refresher is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InvalidateCredentialCommand struct {
	refresher core.CredentialRefresher
}

func NewInvalidateCredentialCommand(refresher core.CredentialRefresher) *InvalidateCredentialCommand {
	return &InvalidateCredentialCommand{refresher: refresher}
}

func (c *InvalidateCredentialCommand) Execute(_ context.Context, _ InvalidateCredentialMessage) error {
	if c == nil || c.refresher == nil {
		return commandDependencyError("command: credential refresher is required")
	}
	c.refresher.Invalidate()
	return nil
}

type SendTextCommand struct {
	sender TextSender
}

func NewSendTextCommand(sender TextSender) *SendTextCommand {
	return &SendTextCommand{sender: sender}
}

func (c *SendTextCommand) Execute(ctx context.Context, msg SendTextMessage) error {
	if c == nil || c.sender == nil {
		return commandDependencyError("command: text sender is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.sender.SendText(ctx, msg.OpenID, msg.Content)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
