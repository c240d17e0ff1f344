package inbound

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-wechat/core"
)

var fixedClock = core.ClockFunc(func() time.Time {
	return time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
})

func textMessage(content string) []byte {
	return []byte("<xml><ToUserName><![CDATA[gh_server]]></ToUserName>" +
		"<FromUserName><![CDATA[o_user]]></FromUserName>" +
		"<CreateTime>1771000000</CreateTime><MsgType><![CDATA[text]]></MsgType>" +
		"<Content><![CDATA[" + content + "]]></Content><MsgId>42</MsgId></xml>")
}

func TestDispatcher_ContentRouting(t *testing.T) {
	dispatcher := NewDispatcher(WithClock(fixedClock))
	cases := []struct {
		name    string
		raw     []byte
		rule    string
		content string
	}{
		{name: "greeting", raw: textMessage("1"), rule: RuleGreeting, content: GreetingReply},
		{name: "joke", raw: textMessage("2"), rule: RuleJoke, content: JokeReply},
		{name: "love", raw: textMessage("我爱你"), rule: RuleLove, content: LoveReply},
		{name: "other_text", raw: textMessage("hello"), rule: RuleFallback, content: FallbackReply},
		{name: "one_with_suffix", raw: textMessage("12"), rule: RuleFallback, content: FallbackReply},
		{
			name:    "image",
			raw:     []byte("<xml><ToUserName>gh_server</ToUserName><FromUserName>o_user</FromUserName><MsgType>image</MsgType></xml>"),
			rule:    RuleNonText,
			content: FallbackReply,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := dispatcher.Handle(context.Background(), tc.raw)
			if outcome.Rule != tc.rule {
				t.Fatalf("expected rule %q, got %q", tc.rule, outcome.Rule)
			}
			body := string(outcome.Body)
			if !strings.Contains(body, "<Content><![CDATA["+tc.content+"]]></Content>") {
				t.Fatalf("expected content %q in %s", tc.content, body)
			}
		})
	}
}

func TestDispatcher_ReplySwapsUsersAndOmitsMsgID(t *testing.T) {
	dispatcher := NewDispatcher(WithClock(fixedClock))
	body := string(dispatcher.Dispatch(context.Background(), textMessage("1")))

	want := "<xml>" +
		"<ToUserName><![CDATA[o_user]]></ToUserName>" +
		"<FromUserName><![CDATA[gh_server]]></FromUserName>" +
		"<CreateTime>1770984000</CreateTime>" +
		"<MsgType><![CDATA[text]]></MsgType>" +
		"<Content><![CDATA[hello! nice to meet you!]]></Content>" +
		"</xml>"
	if body != want {
		t.Fatalf("unexpected reply\nwant %s\ngot  %s", want, body)
	}
	if strings.Contains(body, "MsgId") {
		t.Fatalf("reply must not carry MsgId")
	}
	if strings.ContainsAny(body, "\n\t") || strings.Contains(body, "> <") {
		t.Fatalf("reply must not contain whitespace between elements")
	}
}

func TestDispatcher_MalformedPayloadGetsFallback(t *testing.T) {
	dispatcher := NewDispatcher(WithClock(fixedClock))
	outcome := dispatcher.Handle(context.Background(), []byte("not xml"))
	if outcome.ParseErr == nil {
		t.Fatalf("expected parse error on outcome")
	}
	if outcome.Rule != RuleFallback {
		t.Fatalf("expected fallback rule, got %q", outcome.Rule)
	}
	if !strings.Contains(string(outcome.Body), FallbackReply) {
		t.Fatalf("expected fallback reply, got %s", outcome.Body)
	}
	decoded := Message{}
	if err := xml.Unmarshal(outcome.Body, &decoded); err != nil {
		t.Fatalf("decode fallback reply: %v", err)
	}
	if decoded.ToUserName != "" || decoded.FromUserName != "" {
		t.Fatalf("expected empty user fields, got %+v", decoded)
	}
}

func TestDispatcher_PartialPayloadAddressesKnownUser(t *testing.T) {
	dispatcher := NewDispatcher(WithClock(fixedClock))
	body := string(dispatcher.Dispatch(context.Background(),
		[]byte("<xml><FromUserName>o_user</FromUserName><Content>1</Content></xml>")))
	if !strings.Contains(body, "<ToUserName><![CDATA[o_user]]></ToUserName>") {
		t.Fatalf("expected reply addressed to parsed sender, got %s", body)
	}
	if !strings.Contains(body, FallbackReply) {
		t.Fatalf("expected fallback content, got %s", body)
	}
}

func TestDispatcher_LoveKeywordAndCustomRules(t *testing.T) {
	dispatcher := NewDispatcher(WithClock(fixedClock), WithLoveKeyword("love"))
	if outcome := dispatcher.Handle(context.Background(), textMessage("i love go")); outcome.Rule != RuleLove {
		t.Fatalf("expected configured keyword to match, got %q", outcome.Rule)
	}
	if outcome := dispatcher.Handle(context.Background(), textMessage("爱")); outcome.Rule != RuleFallback {
		t.Fatalf("expected default keyword to be replaced, got %q", outcome.Rule)
	}

	if err := dispatcher.AppendRule(TextEquals("help", "?", "send 1 or 2")); err != nil {
		t.Fatalf("append rule: %v", err)
	}
	outcome := dispatcher.Handle(context.Background(), textMessage("?"))
	if outcome.Rule != "help" || !strings.Contains(string(outcome.Body), "send 1 or 2") {
		t.Fatalf("expected appended rule to answer, got %q %s", outcome.Rule, outcome.Body)
	}
	if err := dispatcher.AppendRule(Rule{Name: "broken"}); err == nil {
		t.Fatalf("expected invalid rule to be rejected")
	}
}

func TestDispatcher_WithRulesFirstMatchWins(t *testing.T) {
	dispatcher := NewDispatcher(
		WithClock(fixedClock),
		WithFallback("fallback!"),
		WithRules(
			Rule{Name: "any_text", Match: func(m Message) bool { return m.IsText() }, Reply: Static("first")},
			TextEquals(RuleGreeting, "1", GreetingReply),
		),
	)
	if name, content := dispatcher.Resolve(Message{MsgType: "text", Content: "1"}); name != "any_text" || content != "first" {
		t.Fatalf("expected first rule to win, got %q/%q", name, content)
	}
	if name, content := dispatcher.Resolve(Message{MsgType: "voice"}); name != RuleFallback || content != "fallback!" {
		t.Fatalf("expected custom fallback, got %q/%q", name, content)
	}
	if len(dispatcher.Rules()) != 2 {
		t.Fatalf("expected two rules")
	}
}
