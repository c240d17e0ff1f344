package query

import "bytes"

const (
	TypeGetAccessToken  = "wechat.query.credential.access_token"
	TypeDispatchMessage = "wechat.query.message.dispatch"
)

type GetAccessTokenMessage struct{}

func (GetAccessTokenMessage) Type() string { return TypeGetAccessToken }

// DispatchMessageMessage carries one raw XML callback body.
type DispatchMessageMessage struct {
	Payload []byte
}

func (DispatchMessageMessage) Type() string { return TypeDispatchMessage }

func (m DispatchMessageMessage) Validate() error {
	if len(bytes.TrimSpace(m.Payload)) == 0 {
		return queryValidationError("payload", "is required")
	}
	return nil
}
