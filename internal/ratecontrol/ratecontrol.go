// Package ratecontrol paces bulk calls to the embedding model so ingestion
// stays inside the deployment's RPM and TPM quotas. The online query path
// never goes through a pacer.
package ratecontrol

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Limits holds requests-per-minute and tokens-per-minute quotas. Zero means
// unlimited on that axis.
type Limits struct {
	RPM int
	TPM int
}

type fileConfig struct {
	RateLimits struct {
		DefaultRPM     int `yaml:"default_rpm"`
		DefaultTPM     int `yaml:"default_tpm"`
		ModelOverrides map[string]struct {
			RPM int `yaml:"rpm"`
			TPM int `yaml:"tpm"`
		} `yaml:"model_overrides"`
	} `yaml:"rate_limits"`
}

// LoadLimits reads quota configuration from a YAML file. A missing or
// unreadable file yields zero limits (no pacing) with a warning; a per-model
// override replaces the defaults wholesale.
func LoadLimits(path, model string, logger *zap.Logger) Limits {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return Limits{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Rate limit config unreadable, pacing disabled",
			zap.String("path", path),
			zap.Error(err),
		)
		return Limits{}
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("Rate limit config malformed, pacing disabled",
			zap.String("path", path),
			zap.Error(err),
		)
		return Limits{}
	}

	if cfg.RateLimits.ModelOverrides != nil {
		if o, ok := cfg.RateLimits.ModelOverrides[strings.ToLower(strings.TrimSpace(model))]; ok {
			return Limits{RPM: o.RPM, TPM: o.TPM}
		}
	}
	return Limits{RPM: cfg.RateLimits.DefaultRPM, TPM: cfg.RateLimits.DefaultTPM}
}

// CombineLimits merges two limit sets, taking the tighter positive value on
// each axis.
func CombineLimits(a, b Limits) Limits {
	return Limits{
		RPM: minPositive(a.RPM, b.RPM),
		TPM: minPositive(a.TPM, b.TPM),
	}
}

func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// EstimateTokens approximates the token cost of a batch by whitespace word
// count, the same measure the chunker budgets with.
func EstimateTokens(texts []string) int {
	n := 0
	for _, t := range texts {
		n += len(strings.Fields(t))
	}
	return n
}

// Pacer blocks callers until the next batch fits the configured quotas.
// A nil Pacer or one with zero limits never waits.
type Pacer struct {
	limits   Limits
	requests *rate.Limiter
	tokens   *rate.Limiter
	logger   *zap.Logger
}

// NewPacer builds a pacer for the given limits.
func NewPacer(limits Limits, logger *zap.Logger) *Pacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pacer{limits: limits, logger: logger}
	if limits.RPM > 0 {
		p.requests = rate.NewLimiter(rate.Limit(float64(limits.RPM))/60, 1)
	}
	if limits.TPM > 0 {
		p.tokens = rate.NewLimiter(rate.Limit(float64(limits.TPM))/60, limits.TPM)
	}
	return p
}

// Limits returns the configured quotas.
func (p *Pacer) Limits() Limits {
	if p == nil {
		return Limits{}
	}
	return p.limits
}

// Wait blocks until one request carrying texts is admitted, or the context
// ends. Batches costing more than a full minute of token budget are admitted
// after draining the budget rather than rejected.
func (p *Pacer) Wait(ctx context.Context, texts []string) error {
	if p == nil {
		return nil
	}
	if p.requests != nil {
		if err := p.requests.Wait(ctx); err != nil {
			return err
		}
	}
	if p.tokens != nil {
		n := EstimateTokens(texts)
		if n > p.tokens.Burst() {
			n = p.tokens.Burst()
		}
		if n > 0 {
			if err := p.tokens.WaitN(ctx, n); err != nil {
				return err
			}
		}
	}
	return nil
}
