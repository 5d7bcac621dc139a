package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/metrics"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/advice"
	"ecoQuestAPI/internal/types/ecolog"
)

const (
	adviceHistorySize = 5
	adviceTimeout     = 15 * time.Second
)

type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type AdviceService struct {
	store     store.Store
	generator TextGenerator
}

// NewAdviceService accepts a nil generator; every request then gets the
// fallback.
func NewAdviceService(st store.Store, gen TextGenerator) *AdviceService {
	return &AdviceService{store: st, generator: gen}
}

// GetAdvice never fails. Anything that goes wrong yields advice.Default().
func (s *AdviceService) GetAdvice(ctx context.Context, uid string) *advice.EcoAdvice {
	if s.generator == nil {
		return fallback("disabled")
	}

	recent, err := s.store.ListLogs(ctx, uid, adviceHistorySize)
	if err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("GetAdvice: failed to load logs")
		return fallback("store")
	}
	chronological := make([]*ecolog.Log, len(recent))
	for i, l := range recent {
		chronological[len(recent)-1-i] = l
	}

	ctx, cancel := context.WithTimeout(ctx, adviceTimeout)
	defer cancel()

	reply, err := s.generator.Generate(ctx, BuildAdvicePrompt(chronological))
	if err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("GetAdvice: generator failed")
		return fallback("generate")
	}

	out, err := ParseAdvice(reply)
	if err != nil {
		reason := "parse"
		if errors.Is(err, errInvalidAdvice) {
			reason = "invalid"
		}
		log.Warn().Err(err).Str("uid", uid).Msg("GetAdvice: unusable reply")
		return fallback(reason)
	}
	return out
}

func fallback(reason string) *advice.EcoAdvice {
	metrics.AdviceFallbacks.WithLabelValues(reason).Inc()
	return advice.Default()
}

// BuildAdvicePrompt renders up to the last five logs, oldest first.
func BuildAdvicePrompt(logs []*ecolog.Log) string {
	if len(logs) > adviceHistorySize {
		logs = logs[len(logs)-adviceHistorySize:]
	}

	var b strings.Builder
	b.WriteString("Analyze my recent carbon footprint logs and give me a helpful daily tip.\n")
	b.WriteString("History:\n")
	for _, l := range logs {
		fmt.Fprintf(&b, "%s: %s (%gkm), %s\n", l.Date, l.Transport.Type, l.Transport.DistanceKm, l.Food)
	}
	b.WriteString("\nLatest entry: ")
	if len(logs) == 0 {
		b.WriteString("None")
	} else {
		latest := logs[len(logs)-1]
		fmt.Fprintf(&b, "%s, %s", latest.Transport.Type, latest.Food)
	}
	return b.String()
}

var errInvalidAdvice = errors.New("invalid advice")

// ParseAdvice decodes a generator reply. The tip must be non-empty and the
// impact score must lie in [1, 100].
func ParseAdvice(reply string) (*advice.EcoAdvice, error) {
	var out advice.EcoAdvice
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &out); err != nil {
		return nil, fmt.Errorf("failed to decode advice: %w", err)
	}
	out.Tip = strings.TrimSpace(out.Tip)
	if out.Tip == "" {
		return nil, fmt.Errorf("%w: empty tip", errInvalidAdvice)
	}
	if math.IsNaN(out.ImpactScore) || out.ImpactScore < 1 || out.ImpactScore > 100 {
		return nil, fmt.Errorf("%w: impact score %v out of range", errInvalidAdvice, out.ImpactScore)
	}
	out.Fallback = false
	return &out, nil
}
