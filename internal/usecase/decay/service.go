// Package decay maintains per-block access metadata and applies archival
// policies over the corpus.
package decay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	domdecay "github.com/tnedr/cognitive-memory-core/internal/domain/decay"
)

// Service tracks block accesses and runs decay passes.
type Service struct {
	store   BlockStore
	archive Archiver
	index   IndexRemover
	logger  *zap.Logger
	now     func() time.Time

	// passMu makes decay passes single-flight per corpus; two interleaved
	// passes could archive the same block twice.
	passMu sync.Mutex
}

// New creates a decay service. index may be nil when no vector index is
// attached.
func New(store BlockStore, archive Archiver, index IndexRemover, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		archive: archive,
		index:   index,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordAccess bumps the block's access counter and stamps last access,
// persisting through the store before returning. Durability is at most
// once, not guaranteed: retrieval is not transactional with persistence,
// and concurrent retrievals of the same block may race on the counter.
// Decay is a coarse periodic policy, so approximate counts are acceptable.
func (s *Service) RecordAccess(ctx context.Context, blockID string) error {
	b, err := s.store.Read(ctx, blockID)
	if err != nil {
		return fmt.Errorf("read block: %w", err)
	}
	b.RecordAccess(s.now())
	if err := s.store.Update(ctx, b); err != nil {
		return fmt.Errorf("persist access: %w", err)
	}
	return nil
}

// Decay archives blocks eligible under the policy's active rules and
// returns the decisions made. A block is archived at most once per pass.
// Per-block failures (e.g. a concurrent delete) are logged and skipped,
// never aborting the whole pass. A pass already in flight returns
// ErrDecayInProgress.
func (s *Service) Decay(ctx context.Context, pol domdecay.Policy) ([]domdecay.Decision, error) {
	if pol.Kind() == domdecay.None {
		return nil, nil
	}

	if !s.passMu.TryLock() {
		return nil, domain.ErrDecayInProgress
	}
	defer s.passMu.Unlock()

	ids, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(pol.DaysThreshold()) * 24 * time.Hour)

	// Usage eligibility is a share of total corpus accesses; with zero
	// total accesses no block is usage-eligible.
	var totalAccess int
	counts := make(map[string]int, len(ids))
	lastAccess := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		b, err := s.store.Read(ctx, id)
		if err != nil {
			s.logger.Warn("decay: skipping unreadable block",
				zap.String("block_id", id), zap.Error(err))
			continue
		}
		counts[id] = b.AccessCount()
		lastAccess[id] = b.LastAccess()
		totalAccess += b.AccessCount()
	}

	var decisions []domdecay.Decision
	for _, id := range ids {
		la, ok := lastAccess[id]
		if !ok {
			continue
		}

		var reason domdecay.Reason
		if pol.AppliesTime() && la.Before(cutoff) {
			reason = domdecay.ReasonTime
		}
		if reason == "" && pol.AppliesUsage() && totalAccess > 0 {
			ratio := float64(counts[id]) / float64(totalAccess)
			if ratio < pol.UsageThreshold() {
				reason = domdecay.ReasonUsage
			}
		}
		if reason == "" {
			continue
		}

		if err := s.archive.Archive(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("decay: block vanished before archive", zap.String("block_id", id))
				continue
			}
			s.logger.Error("decay: archive failed",
				zap.String("block_id", id), zap.Error(err))
			continue
		}
		if s.index != nil {
			s.index.Remove(id)
		}

		s.logger.Info("archived block",
			zap.String("block_id", id),
			zap.String("reason", string(reason)),
			zap.Time("last_access", la),
			zap.Int("access_count", counts[id]),
		)
		decisions = append(decisions, domdecay.Decision{BlockID: id, Reason: reason})
	}

	s.logger.Info("decay pass complete",
		zap.String("policy", string(pol.Kind())),
		zap.Int("archived", len(decisions)),
		zap.Int("corpus", len(ids)),
	)
	return decisions, nil
}
