package sqlstore

import "github.com/goliatone/go-wechat/core"

var (
	_ core.CredentialStore = (*CredentialStore)(nil)
	_ core.CredentialStore = (*CachedCredentialStore)(nil)
	_ SlotStore            = (*CredentialStore)(nil)
	_ SlotStore            = (*CachedCredentialStore)(nil)
)
