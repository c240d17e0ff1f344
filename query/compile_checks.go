package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/inbound"
)

var (
	_ gocmd.Querier[GetAccessTokenMessage, core.Credential] = (*GetAccessTokenQuery)(nil)
	_ gocmd.Querier[DispatchMessageMessage, []byte]         = (*DispatchMessageQuery)(nil)
	_ MessageDispatcher                                     = (*inbound.Dispatcher)(nil)
)
