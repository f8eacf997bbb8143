package worker

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

func TestPool_ProcessesJobs(t *testing.T) {
	tests := []struct {
		name        string
		audio       []string
		records     []string
		deleteErr   error
		job         Job
		wantAudio   []string
		wantRecords []string
	}{
		{
			name:        "removes audio and record",
			audio:       []string{"a.wav", "b.wav"},
			records:     []string{"a", "b"},
			job:         Job{SynthesisID: "a", AudioKey: "a.wav"},
			wantAudio:   []string{"b.wav"},
			wantRecords: []string{"b"},
		},
		{
			name:        "missing audio still removes record",
			records:     []string{"a"},
			job:         Job{SynthesisID: "a", AudioKey: "a.wav"},
			wantAudio:   []string{},
			wantRecords: []string{},
		},
		{
			name:        "store failure keeps record for retry",
			audio:       []string{"a.wav"},
			records:     []string{"a"},
			deleteErr:   domain.ErrStorage,
			job:         Job{SynthesisID: "a", AudioKey: "a.wav"},
			wantAudio:   []string{"a.wav"},
			wantRecords: []string{"a"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMockStore(tc.audio...)
			store.deleteErr = tc.deleteErr
			repo := newMockRepo()
			for _, id := range tc.records {
				repo.records[id] = domain.Synthesis{ID: id, AudioKey: id + ".wav"}
			}

			p := NewPool(store, repo, 4, nil)
			p.Start(2)
			if !p.Submit(tc.job) {
				t.Fatal("expected job to be queued")
			}
			p.Stop()

			if got := store.keys(); !equalStrings(got, tc.wantAudio) {
				t.Fatalf("audio: got %v want %v", got, tc.wantAudio)
			}
			if got := repo.ids(); !equalStrings(got, tc.wantRecords) {
				t.Fatalf("records: got %v want %v", got, tc.wantRecords)
			}
		})
	}
}

func TestPool_SubmitDropsWhenFullOrDuplicate(t *testing.T) {
	p := NewPool(newMockStore(), newMockRepo(), 2, nil)

	if !p.Submit(Job{SynthesisID: "a"}) {
		t.Fatal("first job should be queued")
	}
	if p.Submit(Job{SynthesisID: "a"}) {
		t.Fatal("duplicate job should be dropped")
	}
	if !p.Submit(Job{SynthesisID: "b"}) {
		t.Fatal("second job should be queued")
	}
	if p.Submit(Job{SynthesisID: "c"}) {
		t.Fatal("job beyond queue size should be dropped")
	}

	p.Start(1)
	p.Stop()
	p.Stop()
	if p.Submit(Job{SynthesisID: "d"}) {
		t.Fatal("stopped pool should reject jobs")
	}
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMockStore("old.wav", "edge.wav", "fresh.wav")
	repo := newMockRepo()
	repo.records["old"] = domain.Synthesis{ID: "old", AudioKey: "old.wav", ExpiresAt: now.Add(-time.Hour)}
	repo.records["edge"] = domain.Synthesis{ID: "edge", AudioKey: "edge.wav", ExpiresAt: now}
	repo.records["fresh"] = domain.Synthesis{ID: "fresh", AudioKey: "fresh.wav", ExpiresAt: now.Add(time.Hour)}

	p := NewPool(store, repo, 10, nil)
	s := NewSweeper(repo, p, nil)

	queued, err := s.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if queued != 2 {
		t.Fatalf("queued: got %d want 2", queued)
	}
	p.Start(1)
	p.Stop()

	if got := repo.ids(); !equalStrings(got, []string{"fresh"}) {
		t.Fatalf("records: got %v", got)
	}
	if got := store.keys(); !equalStrings(got, []string{"fresh.wav"}) {
		t.Fatalf("audio: got %v", got)
	}
}

func TestSweeper_SweepPropagatesListError(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = errors.New("db closed")
	s := NewSweeper(repo, NewPool(newMockStore(), repo, 1, nil), nil)
	if _, err := s.Sweep(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	repo := newMockRepo()
	s := NewSweeper(repo, NewPool(newMockStore(), repo, 1, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Mocks ---

type mockStore struct {
	mu        sync.Mutex
	files     map[string]bool
	deleteErr error
}

func newMockStore(keys ...string) *mockStore {
	m := &mockStore{files: map[string]bool{}}
	for _, k := range keys {
		m.files[k] = true
	}
	return m
}

func (m *mockStore) Save(ctx context.Context, key string, w domain.Waveform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = true
	return nil
}

func (m *mockStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if !m.files[key] {
		return domain.ErrNotFound
	}
	delete(m.files, key)
	return nil
}

func (m *mockStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type mockRepo struct {
	mu      sync.Mutex
	records map[string]domain.Synthesis
	listErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: map[string]domain.Synthesis{}}
}

func (m *mockRepo) SaveSynthesis(ctx context.Context, s domain.Synthesis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[s.ID] = s
	return nil
}

func (m *mockRepo) GetSynthesis(ctx context.Context, id string) (domain.Synthesis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[id]
	if !ok {
		return domain.Synthesis{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *mockRepo) ListExpired(ctx context.Context, before time.Time, limit int) ([]domain.Synthesis, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Synthesis{}
	for _, s := range m.records {
		if !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(before) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) DeleteSynthesis(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRepo) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
