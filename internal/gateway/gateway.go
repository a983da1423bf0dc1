// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gateway wraps text-generation backends behind two call modes: list
// mode parses a JSON array of strings out of the response, text mode returns
// the response unmodified. Every failure leaves the package as a classified
// *failure.Error.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// Backend generates text for a prompt. Implementations return raw transport
// or API errors; the Gateway classifies them.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gateway is the generation entry point used by the pipeline.
type Gateway struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Gateway over backend. A nil backend yields a Gateway that
// reports itself unconfigured and fails every call with KindConfigMissing.
func New(backend Backend, timeout time.Duration, logger *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{backend: backend, timeout: timeout, logger: logger}
}

// Configured reports whether a generation credential is available.
func (g *Gateway) Configured() bool {
	return g != nil && g.backend != nil
}

// GenerateList runs prompt and parses the response as a JSON array of
// strings. A response that does not parse yields an empty list and a
// KindParse error; an empty array yields KindEmptyResult.
func (g *Gateway) GenerateList(ctx context.Context, prompt string) ([]string, error) {
	text, err := g.call(ctx, "generate list", prompt)
	if err != nil {
		return []string{}, err
	}

	items, err := ParseList(text)
	if err != nil {
		g.logger.Warn("generation returned unparseable list",
			zap.String("backend", g.backend.Name()),
			zap.Error(err),
		)
		return []string{}, failure.Parse("generate list", err)
	}
	if len(items) == 0 {
		return []string{}, failure.Empty("generate list")
	}
	return items, nil
}

// GenerateText runs prompt and returns the raw response text.
func (g *Gateway) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.call(ctx, "generate text", prompt)
}

func (g *Gateway) call(ctx context.Context, op, prompt string) (string, error) {
	if !g.Configured() {
		return "", failure.ConfigMissing(op, "generation API key")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.backend.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty response")
	}
	if err != nil && failure.KindOf(err) == failure.KindUnknown {
		err = failure.Upstream(op, err)
	}
	elapsed := time.Since(start)
	metrics.RecordExternalCall(g.backend.Name(), metrics.Result(err), elapsed)

	if err != nil {
		g.logger.Warn("generation failed",
			zap.String("backend", g.backend.Name()),
			zap.String("op", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", err
	}

	g.logger.Debug("generation complete",
		zap.String("backend", g.backend.Name()),
		zap.String("op", op),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(text)),
		zap.Duration("elapsed", elapsed),
	)
	return text, nil
}

// StripFence removes a leading ```json or ``` fence and a trailing ``` fence.
// Text without a leading fence is returned trimmed.
func StripFence(text string) string {
	t := strings.TrimSpace(text)
	switch {
	case len(t) >= 7 && strings.EqualFold(t[:7], "```json"):
		t = t[7:]
	case strings.HasPrefix(t, "```"):
		t = t[3:]
	default:
		return t
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ParseList parses a possibly fenced JSON array of strings. Blank entries are
// dropped; order is preserved.
func ParseList(text string) ([]string, error) {
	var raw any
	if err := json.Unmarshal([]byte(StripFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("decoding list: %w", err)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %T", raw)
	}

	items := make([]string, 0, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is %T, not a string", i, v)
		}
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items, nil
}
