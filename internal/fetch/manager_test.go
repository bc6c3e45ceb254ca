package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ealonsogzl/era5-fetcher/internal/cds"
	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/model"
	"github.com/ealonsogzl/era5-fetcher/internal/planner"
	"github.com/rs/zerolog"
)

// fakeRetriever records requests and writes a stub file on success.
type fakeRetriever struct {
	mu      sync.Mutex
	calls   []string // target base names, in dispatch order
	dataset []string
	failOn  map[string]error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, dataset string, params cds.Params, target string) error {
	name := filepath.Base(target)

	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.dataset = append(f.dataset, dataset)
	err := f.failOn[name]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(target, []byte("stub"), 0644)
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testSettings(dir string) *config.Settings {
	s := config.DefaultSettings()
	s.StartDate = "2020-01-01"
	s.EndDate = "2020-03-31"
	s.OutputDir = dir
	s.TimeStep = 6
	s.Concurrency = 3
	s.BBox = model.BoundingBox{North: 47, South: 45, East: 11, West: 9}
	return s
}

func newTestManager(t *testing.T, s *config.Settings) (*Manager, *fakeRetriever) {
	t.Helper()
	client := &fakeRetriever{failOn: map[string]error{}}
	return NewManager(s, client, zerolog.Nop(), nil), client
}

func buildPlan(t *testing.T, s *config.Settings) model.Plan {
	t.Helper()
	plan, err := planner.Build(s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return plan
}

func TestAnnotate_Partition(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	m, _ := newTestManager(t, s)
	plan := buildPlan(t, s)

	// January already on disk, February and March missing.
	if err := os.WriteFile(filepath.Join(dir, "SURF_202001.nc"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	satisfied, pending := m.Annotate(plan)

	if len(satisfied) != 1 || satisfied[0].Name() != "SURF_202001.nc" {
		t.Errorf("satisfied = %v", satisfied.Names())
	}
	if len(pending) != 2 || pending[0].Name() != "SURF_202002.nc" || pending[1].Name() != "SURF_202003.nc" {
		t.Errorf("pending = %v", pending.Names())
	}

	// Annotating again without fetching gives the same partition.
	satisfied2, pending2 := m.Annotate(plan)
	if len(satisfied2) != len(satisfied) || len(pending2) != len(pending) {
		t.Errorf("second annotation differs: %v / %v", satisfied2.Names(), pending2.Names())
	}
}

func TestAnnotate_DirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	m, _ := newTestManager(t, s)
	plan := buildPlan(t, s)

	// A directory at the target path does not count as a download.
	if err := os.Mkdir(filepath.Join(dir, "SURF_202001.nc"), 0755); err != nil {
		t.Fatal(err)
	}

	satisfied, pending := m.Annotate(plan)
	if len(satisfied) != 0 || len(pending) != 3 {
		t.Errorf("satisfied = %v, pending = %v", satisfied.Names(), pending.Names())
	}
}

func TestRun_EmptyPendingDoesNothing(t *testing.T) {
	s := testSettings(t.TempDir())
	m, client := newTestManager(t, s)

	if err := m.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.callCount() != 0 {
		t.Errorf("client was invoked %d times for an empty plan", client.callCount())
	}
}

func TestRun_FetchesAllPending(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	m, client := newTestManager(t, s)
	plan := buildPlan(t, s)

	if err := m.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if client.callCount() != 3 {
		t.Errorf("client invoked %d times, want 3", client.callCount())
	}
	for _, d := range plan {
		if _, err := os.Stat(d.TargetPath); err != nil {
			t.Errorf("%s was not written: %v", d.Name(), err)
		}
	}

	fetched, total := m.Progress()
	if fetched != 3 || total != 3 {
		t.Errorf("Progress() = %d/%d, want 3/3", fetched, total)
	}
}

func TestRun_OneFailureDoesNotStopSiblings(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	m, client := newTestManager(t, s)
	plan := buildPlan(t, s)

	client.failOn["SURF_202002.nc"] = errors.New("quota exceeded")

	err := m.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("expected aggregate error")
	}

	var retrieval *model.RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("error %v is not a RetrievalError", err)
	}
	if len(retrieval.Failed) != 1 || retrieval.Failed[0].Target != "SURF_202002.nc" {
		t.Errorf("failed = %+v", retrieval.Failed)
	}

	// Every request was attempted and the successes are on disk.
	if client.callCount() != 3 {
		t.Errorf("client invoked %d times, want 3", client.callCount())
	}
	for _, name := range []string{"SURF_202001.nc", "SURF_202003.nc"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("sibling %s was not fetched: %v", name, err)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		autoConfirm bool
		emptyPlan   bool
		wantErr     bool
	}{
		{name: "empty pending needs no answer", emptyPlan: true},
		{name: "auto-confirm skips the prompt", autoConfirm: true},
		{name: "lowercase y", answer: "y\n"},
		{name: "uppercase Y", answer: "Y\n"},
		{name: "numeric 1", answer: "1\n"},
		{name: "n declines", answer: "n\n", wantErr: true},
		{name: "yes is not y", answer: "yes\n", wantErr: true},
		{name: "empty answer declines", answer: "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t.TempDir())
			s.AutoConfirm = tt.autoConfirm
			m, _ := newTestManager(t, s)
			m.Input = strings.NewReader(tt.answer)

			var pending model.Plan
			if !tt.emptyPlan {
				pending = buildPlan(t, s)
			}

			err := m.Confirm(pending)
			if tt.wantErr {
				if !errors.Is(err, model.ErrDeclined) {
					t.Errorf("Confirm = %v, want ErrDeclined", err)
				}
			} else if err != nil {
				t.Errorf("Confirm: %v", err)
			}
		})
	}
}

func TestConfirm_DeclinedLeavesNothingFetched(t *testing.T) {
	s := testSettings(t.TempDir())
	m, client := newTestManager(t, s)
	m.Input = strings.NewReader("n\n")
	pending := buildPlan(t, s)

	if err := m.Confirm(pending); !errors.Is(err, model.ErrDeclined) {
		t.Fatalf("Confirm = %v, want ErrDeclined", err)
	}
	if client.callCount() != 0 {
		t.Errorf("declined run still made %d requests", client.callCount())
	}
}

func TestRetrieveMonthlyMeans(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	s.StartDate = "2020-01-15"
	s.EndDate = "2020-02-10"
	m, client := newTestManager(t, s)

	// A pre-existing tpmm.nc does not suppress the request.
	if err := os.WriteFile(filepath.Join(dir, "tpmm.nc"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := m.RetrieveMonthlyMeans(context.Background()); err != nil {
		t.Fatalf("RetrieveMonthlyMeans: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 1 || client.calls[0] != "tpmm.nc" {
		t.Fatalf("calls = %v", client.calls)
	}
	if client.dataset[0] != planner.MonthlyMeansDataset {
		t.Errorf("dataset = %q", client.dataset[0])
	}
}

func TestProgressEventsReachCallback(t *testing.T) {
	dir := t.TempDir()
	s := testSettings(dir)
	client := &fakeRetriever{failOn: map[string]error{}}

	var mu sync.Mutex
	var events []ProgressEvent
	m := NewManager(s, client, zerolog.Nop(), func(e ProgressEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	plan := buildPlan(t, s)
	if err := m.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var successes int
	for _, e := range events {
		if e.Level == LevelSuccess {
			successes++
		}
	}
	if successes != 3 {
		t.Errorf("got %d success events, want 3", successes)
	}
}
