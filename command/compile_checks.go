package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RefreshCredentialMessage]    = (*RefreshCredentialCommand)(nil)
	_ gocmd.Commander[InvalidateCredentialMessage] = (*InvalidateCredentialCommand)(nil)
	_ gocmd.Commander[SendTextMessage]             = (*SendTextCommand)(nil)
)
