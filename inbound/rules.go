package inbound

import (
	"strings"

	"github.com/goliatone/go-wechat/core"
)

const (
	RuleGreeting = "greeting"
	RuleJoke     = "joke"
	RuleLove     = "love"
	RuleNonText  = "non_text"
	RuleFallback = "fallback"

	GreetingReply = "hello! nice to meet you!"
	JokeReply     = "2货哪里跑"
	LoveReply     = "I love you,too."
	FallbackReply = "好好说话"
)

// Rule pairs a predicate with the reply content it produces.
type Rule struct {
	Name  string
	Match func(msg Message) bool
	Reply func(msg Message) string
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return inboundBadInput("inbound: rule name is required", nil)
	}
	if r.Match == nil || r.Reply == nil {
		return inboundBadInput("inbound: rule requires match and reply functions", map[string]any{
			"rule": r.Name,
		})
	}
	return nil
}

// DefaultRules returns the built-in table. Order matters: exact matches
// come before the keyword rule.
func DefaultRules(loveKeyword string) []Rule {
	if loveKeyword == "" {
		loveKeyword = core.DefaultLoveKeyword
	}
	return []Rule{
		TextEquals(RuleGreeting, "1", GreetingReply),
		TextEquals(RuleJoke, "2", JokeReply),
		TextContains(RuleLove, loveKeyword, LoveReply),
		{
			Name:  RuleNonText,
			Match: func(msg Message) bool { return !msg.IsText() },
			Reply: Static(FallbackReply),
		},
	}
}

func TextEquals(name string, content string, reply string) Rule {
	return Rule{
		Name: name,
		Match: func(msg Message) bool {
			return msg.IsText() && msg.Content == content
		},
		Reply: Static(reply),
	}
}

func TextContains(name string, keyword string, reply string) Rule {
	return Rule{
		Name: name,
		Match: func(msg Message) bool {
			return msg.IsText() && keyword != "" && strings.Contains(msg.Content, keyword)
		},
		Reply: Static(reply),
	}
}

func Static(reply string) func(Message) string {
	return func(Message) string { return reply }
}
