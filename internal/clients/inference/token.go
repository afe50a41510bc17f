package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// TokenProvider 获取面向指定 audience 的短期身份令牌。
type TokenProvider interface {
	Token(ctx context.Context, audience string) (string, error)
}

// IDTokenProvider 基于默认凭据签发 Google ID Token，按 audience 复用 TokenSource。
type IDTokenProvider struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
	opts    []option.ClientOption
	newTS   func(ctx context.Context, audience string, opts ...option.ClientOption) (oauth2.TokenSource, error)
}

// NewIDTokenProvider 构造 IDTokenProvider。
func NewIDTokenProvider(opts ...option.ClientOption) *IDTokenProvider {
	return &IDTokenProvider{
		sources: make(map[string]oauth2.TokenSource),
		opts:    opts,
		newTS:   idtoken.NewTokenSource,
	}
}

// Token 返回 audience 对应的 ID Token。
func (p *IDTokenProvider) Token(ctx context.Context, audience string) (string, error) {
	if audience == "" {
		return "", errors.New("audience is required")
	}
	ts, err := p.source(audience)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("mint id token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("mint id token: empty token")
	}
	return tok.AccessToken, nil
}

func (p *IDTokenProvider) source(audience string) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ts, ok := p.sources[audience]; ok {
		return ts, nil
	}
	// TokenSource 跨调用复用，不能绑定到单次请求的 ctx。
	ts, err := p.newTS(context.Background(), audience, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("init id token source: %w", err)
	}
	p.sources[audience] = ts
	return ts, nil
}
