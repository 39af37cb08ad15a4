package decay

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/block"
	domdecay "github.com/tnedr/cognitive-memory-core/internal/domain/decay"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	blocks   map[string]*block.Block
	order    []string
	archived []string
	updates  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: map[string]*block.Block{}}
}

func (f *fakeStore) add(b *block.Block) {
	f.blocks[b.ID()] = b
	f.order = append(f.order, b.ID())
}

func (f *fakeStore) ListAll(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.order))
	for _, id := range f.order {
		if _, ok := f.blocks[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) Read(_ context.Context, blockID string) (*block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[blockID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) Update(_ context.Context, b *block.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[b.ID()]; !ok {
		return domain.ErrNotFound
	}
	f.blocks[b.ID()] = b
	f.updates++
	return nil
}

func (f *fakeStore) Archive(_ context.Context, blockID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[blockID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.blocks, blockID)
	f.archived = append(f.archived, blockID)
	return nil
}

type fakeIndex struct {
	removed []string
}

func (f *fakeIndex) Remove(blockID string) {
	f.removed = append(f.removed, blockID)
}

// testBlock builds a block whose access metadata is fully controlled.
func testBlock(t *testing.T, id string, accessCount int, lastAccess time.Time) *block.Block {
	t.Helper()
	meta := map[string]string{
		block.MetaAccessCount: strconv.Itoa(accessCount),
		block.MetaLastAccess:  lastAccess.Format(time.RFC3339Nano),
	}
	b, err := block.New(id, "title "+id, "content "+id, nil, "", meta)
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	return b
}

func mustPolicy(t *testing.T, kind domdecay.Kind, days int, usage float64) domdecay.Policy {
	t.Helper()
	pol, err := domdecay.New(kind, days, usage)
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	return pol
}

func TestRecordAccess_IncrementsAndPersists(t *testing.T) {
	store := newFakeStore()
	store.add(testBlock(t, "b1", 3, testNow.Add(-time.Hour)))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	if err := svc.RecordAccess(context.Background(), "b1"); err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}

	b := store.blocks["b1"]
	if b.AccessCount() != 4 {
		t.Errorf("access count: got %d, want 4", b.AccessCount())
	}
	if !b.LastAccess().Equal(testNow) {
		t.Errorf("last access: got %v, want %v", b.LastAccess(), testNow)
	}
	if store.updates != 1 {
		t.Errorf("expected exactly one persisted update, got %d", store.updates)
	}
}

func TestRecordAccess_MissingBlock(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, nil, nil)

	err := svc.RecordAccess(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecay_TimePolicyArchivesOldBlocks(t *testing.T) {
	store := newFakeStore()
	store.add(testBlock(t, "old", 10, testNow.AddDate(0, 0, -200)))
	store.add(testBlock(t, "fresh", 1, testNow.AddDate(0, 0, -10)))

	index := &fakeIndex{}
	svc := New(store, store, index, nil).WithClock(func() time.Time { return testNow })

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Time, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}

	if len(decisions) != 1 {
		t.Fatalf("expected 1 archived block, got %d", len(decisions))
	}
	if decisions[0].BlockID != "old" || decisions[0].Reason != domdecay.ReasonTime {
		t.Errorf("unexpected decision %+v", decisions[0])
	}
	if len(index.removed) != 1 || index.removed[0] != "old" {
		t.Errorf("archived block must leave the index, got %v", index.removed)
	}
	if _, ok := store.blocks["fresh"]; !ok {
		t.Error("fresh block must survive the pass")
	}
}

func TestDecay_TimeBoundaryIsExclusive(t *testing.T) {
	store := newFakeStore()
	// Exactly at the cutoff: last_access == now - 180d is not strictly
	// before the cutoff, so the block stays.
	store.add(testBlock(t, "edge", 1, testNow.AddDate(0, 0, -180)))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Time, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("boundary block must not be archived, got %v", decisions)
	}
}

func TestDecay_UsagePolicyArchivesRareBlocks(t *testing.T) {
	store := newFakeStore()
	recent := testNow.Add(-time.Hour)
	store.add(testBlock(t, "hot", 99, recent))
	store.add(testBlock(t, "cold", 0, recent))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	// cold share: 0/99 = 0 < 0.01
	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Usage, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}

	if len(decisions) != 1 {
		t.Fatalf("expected 1 archived block, got %d", len(decisions))
	}
	if decisions[0].BlockID != "cold" || decisions[0].Reason != domdecay.ReasonUsage {
		t.Errorf("unexpected decision %+v", decisions[0])
	}
}

func TestDecay_ZeroTotalAccessDisablesUsageRule(t *testing.T) {
	store := newFakeStore()
	recent := testNow.Add(-time.Hour)
	store.add(testBlock(t, "a", 0, recent))
	store.add(testBlock(t, "b", 0, recent))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Usage, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("zero total accesses must archive nothing, got %v", decisions)
	}
}

func TestDecay_BothPolicyArchivesOncePerBlock(t *testing.T) {
	store := newFakeStore()
	// Eligible under both rules: old and never accessed next to a hot peer.
	store.add(testBlock(t, "stale", 0, testNow.AddDate(0, 0, -400)))
	store.add(testBlock(t, "hot", 50, testNow.Add(-time.Hour)))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Both, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}

	if len(decisions) != 1 {
		t.Fatalf("block eligible under both rules must be archived once, got %d", len(decisions))
	}
	// Time rule is checked first and wins the reason.
	if decisions[0].Reason != domdecay.ReasonTime {
		t.Errorf("reason: got %s, want %s", decisions[0].Reason, domdecay.ReasonTime)
	}
	if len(store.archived) != 1 {
		t.Errorf("archive called %d times, want 1", len(store.archived))
	}
}

func TestDecay_NonePolicyIsNoop(t *testing.T) {
	store := newFakeStore()
	store.add(testBlock(t, "old", 0, testNow.AddDate(0, 0, -400)))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.None, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if decisions != nil {
		t.Errorf("none policy must decide nothing, got %v", decisions)
	}
	if len(store.archived) != 0 {
		t.Error("none policy must not archive")
	}
}

func TestDecay_EmptyCorpus(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, nil, nil)

	decisions, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Time, 180, 0.01))
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("empty corpus must archive nothing, got %v", decisions)
	}
}

func TestDecay_SingleFlight(t *testing.T) {
	store := newFakeStore()
	store.add(testBlock(t, "b1", 1, testNow.Add(-time.Hour)))

	svc := New(store, store, nil, nil).WithClock(func() time.Time { return testNow })

	svc.passMu.Lock()
	defer svc.passMu.Unlock()

	_, err := svc.Decay(context.Background(), mustPolicy(t, domdecay.Time, 180, 0.01))
	if !errors.Is(err, domain.ErrDecayInProgress) {
		t.Fatalf("expected ErrDecayInProgress, got %v", err)
	}
}

func TestPolicy_Validation(t *testing.T) {
	t.Run("negative days", func(t *testing.T) {
		if _, err := domdecay.New(domdecay.Time, -1, 0.01); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
	t.Run("usage threshold at one", func(t *testing.T) {
		if _, err := domdecay.New(domdecay.Usage, 180, 1.0); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
	t.Run("negative usage threshold", func(t *testing.T) {
		if _, err := domdecay.New(domdecay.Usage, 180, -0.1); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
	t.Run("zero thresholds valid", func(t *testing.T) {
		if _, err := domdecay.New(domdecay.Time, 0, 0); err != nil {
			t.Errorf("zero thresholds must be accepted: %v", err)
		}
	})
}
