package gateway

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// CredentialMinter mints single-use live-session credentials.
type CredentialMinter interface {
	MintSessionToken(ctx context.Context, model string) (string, error)
}

// GenaiMinter mints ephemeral Gemini auth tokens constrained to one live
// model, so a leaked client token cannot be replayed elsewhere.
type GenaiMinter struct {
	client *genai.Client
	ttl    time.Duration
}

// NewGenaiMinter creates a minter. ttl bounds how long an unused token stays
// valid.
func NewGenaiMinter(client *genai.Client, ttl time.Duration) *GenaiMinter {
	return &GenaiMinter{client: client, ttl: ttl}
}

func (m *GenaiMinter) MintSessionToken(ctx context.Context, model string) (string, error) {
	token, err := m.client.AuthTokens.Create(ctx, &genai.CreateAuthTokenConfig{
		Uses:       genai.Ptr[int32](1),
		ExpireTime: time.Now().Add(m.ttl),
		LiveConnectConstraints: &genai.LiveConnectConstraints{
			Model: model,
		},
	})
	if err != nil {
		return "", fmt.Errorf("mint session token: %w", err)
	}
	return token.Name, nil
}
