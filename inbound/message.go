package inbound

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const (
	MsgTypeText  = "text"
	MsgTypeEvent = "event"
)

// Message is one inbound platform message. CreateTime is in Unix seconds as
// sent by the platform.
type Message struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
	MsgID        string   `xml:"MsgId"`
	Event        string   `xml:"Event"`
}

func (m Message) IsText() bool {
	return strings.EqualFold(m.MsgType, MsgTypeText)
}

// ParseMessage decodes an <xml> payload. On a missing user field it returns
// the partially decoded message together with the error, so callers can
// still address a fallback reply.
func ParseMessage(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, parseFailure(nil, "inbound: message payload is empty", nil)
	}
	msg := Message{}
	if err := xml.Unmarshal(raw, &msg); err != nil {
		return Message{}, parseFailure(err, "inbound: decode message payload", map[string]any{
			"bytes": len(raw),
		})
	}
	msg.ToUserName = strings.TrimSpace(msg.ToUserName)
	msg.FromUserName = strings.TrimSpace(msg.FromUserName)
	msg.MsgType = strings.TrimSpace(msg.MsgType)
	msg.MsgID = strings.TrimSpace(msg.MsgID)
	msg.Event = strings.TrimSpace(msg.Event)

	missing := []string{}
	if msg.ToUserName == "" {
		missing = append(missing, "ToUserName")
	}
	if msg.FromUserName == "" {
		missing = append(missing, "FromUserName")
	}
	if len(missing) > 0 {
		return msg, parseFailure(nil, "inbound: message is missing user fields", map[string]any{
			"missing": missing,
		})
	}
	return msg, nil
}
