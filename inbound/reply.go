package inbound

import (
	"encoding/xml"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wechat/core"
)

// Reply is the passive text reply. ToUserName and FromUserName are the
// inbound message's users swapped.
type Reply struct {
	ToUserName   string
	FromUserName string
	CreateTime   int64
	MsgType      string
	Content      string
}

func NewReply(msg Message, content string, now time.Time) Reply {
	return Reply{
		ToUserName:   msg.FromUserName,
		FromUserName: msg.ToUserName,
		CreateTime:   now.Unix(),
		MsgType:      MsgTypeText,
		Content:      content,
	}
}

type cdata struct {
	Value string `xml:",cdata"`
}

type replyEnvelope struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   cdata    `xml:"ToUserName"`
	FromUserName cdata    `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      cdata    `xml:"MsgType"`
	Content      cdata    `xml:"Content"`
}

// Encode renders a single <xml> element with no whitespace between children.
func (r Reply) Encode() ([]byte, error) {
	msgType := r.MsgType
	if msgType == "" {
		msgType = MsgTypeText
	}
	encoded, err := xml.Marshal(replyEnvelope{
		ToUserName:   cdata{Value: r.ToUserName},
		FromUserName: cdata{Value: r.FromUserName},
		CreateTime:   r.CreateTime,
		MsgType:      cdata{Value: msgType},
		Content:      cdata{Value: r.Content},
	})
	if err != nil {
		return nil, inboundWrapError(
			err,
			goerrors.CategoryInternal,
			"inbound: encode reply",
			http.StatusInternalServerError,
			core.WeChatErrorInternal,
			nil,
		)
	}
	return encoded, nil
}
