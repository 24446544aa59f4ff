package llm

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/interfaces"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// limitedService decorates an LLMService with provider call spacing and a
// global in-flight cap shared across every job. All audit traffic goes
// through one of these so twelve-way fan-outs from concurrent jobs cannot
// stampede the provider.
type limitedService struct {
	inner     interfaces.LLMService
	limiter   *rate.Limiter
	semaphore *semaphore.Weighted
	logger    arbor.ILogger
}

// NewLimitedService wraps a provider with spacing and a global concurrency cap
func NewLimitedService(inner interfaces.LLMService, minInterval time.Duration, maxInFlight int, logger arbor.ILogger) interfaces.LLMService {
	if maxInFlight <= 0 {
		maxInFlight = 32
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}

	return &limitedService{
		inner:     inner,
		limiter:   limiter,
		semaphore: semaphore.NewWeighted(int64(maxInFlight)),
		logger:    logger,
	}
}

func (s *limitedService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if err := s.semaphore.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.semaphore.Release(1)

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return s.inner.Complete(ctx, req)
}

func (s *limitedService) Provider() string {
	return s.inner.Provider()
}

func (s *limitedService) Close() error {
	return s.inner.Close()
}
