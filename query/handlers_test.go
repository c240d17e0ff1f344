package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-wechat/core"
	"github.com/goliatone/go-wechat/inbound"
)

type stubProvider struct {
	credential core.Credential
	err        error
	calls      int
}

func (s *stubProvider) GetValidCredential(context.Context) (core.Credential, error) {
	s.calls++
	return s.credential, s.err
}

func TestGetAccessTokenQuery_QueryDelegates(t *testing.T) {
	expected := core.Credential{Token: "tok", ExpiresAt: time.Date(2026, 2, 13, 13, 55, 0, 0, time.UTC)}
	provider := &stubProvider{credential: expected}
	result, err := NewGetAccessTokenQuery(provider).Query(context.Background(), GetAccessTokenMessage{})
	if err != nil {
		t.Fatalf("query access token: %v", err)
	}
	if provider.calls != 1 || !result.Equal(expected) {
		t.Fatalf("unexpected result %#v after %d calls", result, provider.calls)
	}
}

func TestGetAccessTokenQuery_PropagatesError(t *testing.T) {
	sentinel := errors.New("remote down")
	_, err := NewGetAccessTokenQuery(&stubProvider{err: sentinel}).Query(context.Background(), GetAccessTokenMessage{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestDispatchMessageQuery_ReturnsReply(t *testing.T) {
	clock := core.ClockFunc(func() time.Time { return time.Unix(1770984000, 0) })
	qry := NewDispatchMessageQuery(inbound.NewDispatcher(inbound.WithClock(clock)))
	payload := []byte("<xml><ToUserName>gh_server</ToUserName><FromUserName>o_user</FromUserName>" +
		"<CreateTime>1</CreateTime><MsgType>text</MsgType><Content>2</Content></xml>")
	body, err := qry.Query(context.Background(), DispatchMessageMessage{Payload: payload})
	if err != nil {
		t.Fatalf("query dispatch: %v", err)
	}
	if !strings.Contains(string(body), inbound.JokeReply) {
		t.Fatalf("expected joke reply, got %s", body)
	}
	if !strings.Contains(string(body), "<CreateTime>1770984000</CreateTime>") {
		t.Fatalf("expected clock create time, got %s", body)
	}
}

func TestDispatchMessageQuery_ValidatesPayload(t *testing.T) {
	_, err := NewDispatchMessageQuery(inbound.NewDispatcher()).Query(context.Background(), DispatchMessageMessage{Payload: []byte("  ")})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.WeChatErrorBadInput {
		t.Fatalf("unexpected envelope %q/%q", rich.Category, rich.TextCode)
	}
}

func TestQueries_NilDependencyReturnsRichError(t *testing.T) {
	var tokenQuery *GetAccessTokenQuery
	_, tokenErr := tokenQuery.Query(context.Background(), GetAccessTokenMessage{})
	_, dispatchErr := NewDispatchMessageQuery(nil).Query(context.Background(), DispatchMessageMessage{Payload: []byte("<xml/>")})
	for i, err := range []error{tokenErr, dispatchErr} {
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("case %d: expected go-errors envelope, got %T", i, err)
		}
		if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.WeChatErrorInternal {
			t.Fatalf("case %d: unexpected envelope %q/%q", i, rich.Category, rich.TextCode)
		}
	}
}
