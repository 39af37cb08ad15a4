package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tnedr/cognitive-memory-core/internal/domain"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/candidate"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/mode"
	"github.com/tnedr/cognitive-memory-core/internal/domain/search/request"
)

type fakeVectors struct {
	cands     []candidate.Candidate
	err       error
	wantTopK  int
	gotTopK   int
	gotQuery  string
	callCount int
}

func (f *fakeVectors) SimilaritySearch(_ context.Context, query string, topK int) ([]candidate.Candidate, error) {
	f.callCount++
	f.gotQuery = query
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.cands, nil
}

type fakeBlocks struct {
	views map[string]fakeView
	err   error
}

func (f *fakeBlocks) Read(_ context.Context, blockID string) (BlockView, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.views[blockID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

type fakeAccess struct {
	recorded []string
	err      error
}

func (f *fakeAccess) RecordAccess(_ context.Context, blockID string) error {
	f.recorded = append(f.recorded, blockID)
	return f.err
}

func mustRequest(t *testing.T, query string, topK int, boost, exclude []string,
	strategy mode.Strategy, filterMode mode.FilterMode) *request.Request {
	t.Helper()
	req, err := request.New(query, topK, boost, exclude, strategy, filterMode, 0)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return &req
}

func corpus() (*fakeVectors, *fakeBlocks) {
	vectors := &fakeVectors{cands: []candidate.Candidate{
		candidate.New("b1", 0.9, "docker overlay networks"),
		candidate.New("b2", 0.8, "kubernetes ingress"),
		candidate.New("b3", 0.7, "deprecated registry api"),
	}}
	blocks := &fakeBlocks{views: map[string]fakeView{
		"b1": {id: "b1", title: "docker networking", content: "docker overlay networks"},
		"b2": {id: "b2", title: "kubernetes ingress", content: "routing http traffic"},
		"b3": {id: "b3", title: "registry notes", content: "deprecated registry api"},
	}}
	return vectors, blocks
}

func TestRetrieve_HybridOrdersByBoostedScore(t *testing.T) {
	vectors, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "ingress", 5, []string{"kubernetes"}, nil, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// b2: 0.8 + 0.2 (title) + 0.1 (content? no: "kubernetes" not in content) = 1.0
	if results[0].BlockID() != "b2" {
		t.Errorf("boosted block must rank first, got %s", results[0].BlockID())
	}
	want := 0.8 + 0.2
	if math.Abs(results[0].FinalScore()-want) > scoreEps {
		t.Errorf("got score %v, want %v", results[0].FinalScore(), want)
	}
}

func TestRetrieve_StrictDropsExcluded(t *testing.T) {
	vectors, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "registry", 5, nil, []string{"deprecated"}, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	for _, r := range results {
		if r.BlockID() == "b3" {
			t.Error("strict mode must drop the excluded block")
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 surviving results, got %d", len(results))
	}
}

func TestRetrieve_AnnotateKeepsExcludedFlagged(t *testing.T) {
	vectors, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "registry", 5, nil, []string{"deprecated"}, mode.Hybrid, mode.Annotate)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("annotate mode must keep all results, got %d", len(results))
	}
	found := false
	for _, r := range results {
		if r.BlockID() == "b3" {
			found = true
			if !r.Filtered() {
				t.Error("excluded block must carry the filtered flag")
			}
		} else if r.Filtered() {
			t.Errorf("block %s wrongly flagged", r.BlockID())
		}
	}
	if !found {
		t.Error("excluded block missing from annotated results")
	}
}

func TestRetrieve_TopKTruncation(t *testing.T) {
	vectors, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "anything", 2, nil, nil, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected topK=2 results, got %d", len(results))
	}
}

func TestRetrieve_PoolSizeByStrategy(t *testing.T) {
	cases := []struct {
		name     string
		boost    []string
		strategy mode.Strategy
		want     int
	}{
		{"plain hybrid", nil, mode.Hybrid, 5},
		{"hybrid with boost", []string{"x"}, mode.Hybrid, 10},
		{"rrf", nil, mode.RRF, 15},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vectors, blocks := corpus()
			svc := New(vectors, blocks, nil, nil)

			req := mustRequest(t, "q", 5, tc.boost, nil, tc.strategy, mode.Strict)
			if _, err := svc.Retrieve(context.Background(), req); err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if vectors.gotTopK != tc.want {
				t.Errorf("pool size: got %d, want %d", vectors.gotTopK, tc.want)
			}
		})
	}
}

func TestRetrieve_RRFUsesFusion(t *testing.T) {
	vectors, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "docker", 5, nil, nil, mode.RRF, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// b1 holds both signals: semantic rank 1 and keyword rank 1.
	if results[0].BlockID() != "b1" {
		t.Fatalf("expected b1 first, got %s", results[0].BlockID())
	}
	want := 1.0/61.0 + 1.0/61.0
	if math.Abs(results[0].FinalScore()-want) > scoreEps {
		t.Errorf("got fused score %v, want %v", results[0].FinalScore(), want)
	}
}

func TestRetrieve_StaleCandidateSkipped(t *testing.T) {
	vectors, blocks := corpus()
	delete(blocks.views, "b2")
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "anything", 5, nil, nil, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("stale candidate must not fail the query: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results after skipping stale, got %d", len(results))
	}
}

func TestRetrieve_BlockReadFailurePropagates(t *testing.T) {
	vectors, _ := corpus()
	blocks := &fakeBlocks{err: errors.New("disk on fire")}
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "anything", 5, nil, nil, mode.Hybrid, mode.Strict)
	if _, err := svc.Retrieve(context.Background(), req); err == nil {
		t.Fatal("storage failure must propagate")
	}
}

func TestRetrieve_UnrankedCandidateIsHardError(t *testing.T) {
	vectors := &fakeVectors{cands: []candidate.Candidate{
		candidate.New("b1", math.NaN(), ""),
	}}
	_, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "anything", 5, nil, nil, mode.Hybrid, mode.Strict)
	_, err := svc.Retrieve(context.Background(), req)
	if !errors.Is(err, domain.ErrUnranked) {
		t.Fatalf("expected ErrUnranked, got %v", err)
	}
}

func TestRetrieve_SearchFailurePropagates(t *testing.T) {
	vectors := &fakeVectors{err: domain.ErrBackendUnavailable}
	_, blocks := corpus()
	svc := New(vectors, blocks, nil, nil)

	req := mustRequest(t, "anything", 5, nil, nil, mode.Hybrid, mode.Strict)
	_, err := svc.Retrieve(context.Background(), req)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestRetrieve_RecordsAccessForSurfacedOnly(t *testing.T) {
	vectors, blocks := corpus()
	access := &fakeAccess{}
	svc := New(vectors, blocks, access, nil)

	req := mustRequest(t, "anything", 2, nil, nil, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(access.recorded) != len(results) {
		t.Fatalf("recorded %d accesses for %d results", len(access.recorded), len(results))
	}
	for i, r := range results {
		if access.recorded[i] != r.BlockID() {
			t.Errorf("access %d: got %s, want %s", i, access.recorded[i], r.BlockID())
		}
	}
}

func TestRetrieve_AccessFailureDoesNotFailQuery(t *testing.T) {
	vectors, blocks := corpus()
	access := &fakeAccess{err: errors.New("write failed")}
	svc := New(vectors, blocks, access, nil)

	req := mustRequest(t, "anything", 5, nil, nil, mode.Hybrid, mode.Strict)
	results, err := svc.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatalf("access failure must not fail the query: %v", err)
	}
	if len(results) == 0 {
		t.Error("expected results despite access failures")
	}
}

func TestRetrieve_AnnotatedExcludedStillRecordsAccess(t *testing.T) {
	vectors, blocks := corpus()
	access := &fakeAccess{}
	svc := New(vectors, blocks, access, nil)

	req := mustRequest(t, "registry", 5, nil, []string{"deprecated"}, mode.Hybrid, mode.Annotate)
	if _, err := svc.Retrieve(context.Background(), req); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	seen := false
	for _, id := range access.recorded {
		if id == "b3" {
			seen = true
		}
	}
	if !seen {
		t.Error("annotated excluded result is still surfaced and must record access")
	}
}
