package cache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Prompt is the exact-match cache tier: a cryptographic hash of model+prompt
// is the key, so only literally repeated calls (retries, duplicated requests)
// hit it. Entries expire after the configured TTL.
type Prompt struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPrompt creates the prompt cache tier. A nil client disables the tier
// (every lookup is a miss).
func NewPrompt(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Prompt {
	return &Prompt{client: client, ttl: ttl, logger: logger}
}

// Lookup returns the cached answer for an identical model+prompt pair, or ""
// on a miss. Redis failures degrade to a miss.
func (p *Prompt) Lookup(ctx context.Context, tenantID, model, prompt string) string {
	if p.client == nil {
		return ""
	}
	answer, err := p.client.Get(ctx, promptKey(tenantID, model, prompt)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("prompt cache lookup failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return ""
	}
	return answer
}

// Save stores an answer with the retention TTL. Failures are logged and
// swallowed.
func (p *Prompt) Save(ctx context.Context, tenantID, model, prompt, answer string) {
	if p.client == nil || answer == "" {
		return
	}
	if err := p.client.Set(ctx, promptKey(tenantID, model, prompt), answer, p.ttl).Err(); err != nil {
		p.logger.Warn("prompt cache save failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func promptKey(tenantID, model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "|" + prompt))
	return "pc:" + tenantID + ":" + base64.RawURLEncoding.EncodeToString(sum[:])
}
