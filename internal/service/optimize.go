package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/prompt-library/internal/apperror"
	"github.com/sakif/prompt-library/internal/optimizer"
)

// MaxOptimizeLength bounds the text sent to the AI provider.
const MaxOptimizeLength = 20000

// Optimizer rewrites prompt text. optimizer.Client implements it.
type Optimizer interface {
	Optimize(ctx context.Context, content string, typ optimizer.Type, lang optimizer.Language) (string, error)
}

type OptimizeResult struct {
	Original         string             `json:"original"`
	Optimized        string             `json:"optimized"`
	OptimizationType optimizer.Type     `json:"optimizationType"`
	Language         optimizer.Language `json:"language"`
	Timestamp        time.Time          `json:"timestamp"`
}

// OptimizeService validates optimize requests and forwards them.
type OptimizeService struct {
	client Optimizer
	logger *slog.Logger
	now    func() time.Time
}

func NewOptimizeService(client Optimizer, logger *slog.Logger) *OptimizeService {
	return &OptimizeService{client: client, logger: logger, now: time.Now}
}

func (s *OptimizeService) Optimize(ctx context.Context, userID, content, typ, lang string) (*OptimizeResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if len([]rune(content)) > MaxOptimizeLength {
		return nil, apperror.ValidationFailed("content", "content is too long to optimize")
	}
	t, err := optimizer.ParseType(typ)
	if err != nil {
		return nil, err
	}
	l, err := optimizer.ParseLanguage(lang)
	if err != nil {
		return nil, err
	}

	out, err := s.client.Optimize(ctx, content, t, l)
	if err != nil {
		s.logger.Error("prompt optimization failed",
			slog.String("user_id", userID),
			slog.String("type", string(t)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return &OptimizeResult{
		Original:         content,
		Optimized:        out,
		OptimizationType: t,
		Language:         l,
		Timestamp:        s.now().UTC(),
	}, nil
}
