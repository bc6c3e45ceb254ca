package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ealonsogzl/era5-fetcher/internal/cds"
	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/model"
	"github.com/ealonsogzl/era5-fetcher/internal/planner"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a retrieval progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Manager coordinates monthly ERA5 retrievals.
type Manager struct {
	settings *config.Settings
	client   cds.Retriever
	log      zerolog.Logger

	// Input overrides the source of confirmation answers. When nil the
	// prompt reads stdin, and only when stdin is a terminal.
	Input io.Reader

	totalFiles   int32
	fetchedFiles int32

	onProgress func(ProgressEvent)
	mu         sync.Mutex
	failed     []model.FailedRequest
}

// NewManager creates a Manager around the given archive client. The
// progress callback may be nil.
func NewManager(settings *config.Settings, client cds.Retriever, log zerolog.Logger, onProgress func(ProgressEvent)) *Manager {
	return &Manager{
		settings:   settings,
		client:     client,
		log:        log,
		onProgress: onProgress,
	}
}

// Annotate partitions the plan by file presence: descriptors whose
// target already exists as a regular file are satisfied, the rest are
// pending. Order is preserved within both halves and the filesystem is
// not modified, so running it twice gives the same partition.
//
// Presence is the only completeness signal checked; the archive is not
// consulted.
func (m *Manager) Annotate(plan model.Plan) (satisfied, pending model.Plan) {
	for _, d := range plan {
		if info, err := os.Stat(d.TargetPath); err == nil && info.Mode().IsRegular() {
			satisfied = append(satisfied, d)
		} else {
			pending = append(pending, d)
		}
	}

	label := "ERA5"
	if len(plan) > 0 {
		label = "ERA5 " + strings.ToUpper(string(plan[0].Kind))
	}

	if len(satisfied) > 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%s data found on disk:", label), Level: LevelInfo})
		for _, d := range satisfied {
			m.progress(ProgressEvent{Message: "  " + d.Name(), Level: LevelInfo})
		}
	}
	if len(pending) > 0 {
		m.progress(ProgressEvent{Message: fmt.Sprintf("%s data to download:", label), Level: LevelInfo})
		for _, d := range pending {
			m.progress(ProgressEvent{Message: "  " + d.Name(), Level: LevelInfo})
		}
	}

	m.log.Info().
		Strs("satisfied", satisfied.Names()).
		Strs("pending", pending.Names()).
		Msg("plan annotated")

	return satisfied, pending
}

// Confirm gates the download of a non-empty pending plan behind an
// explicit yes. An empty plan needs no confirmation. The prompt is
// skipped when auto-confirm is set; without a terminal (and without
// auto-confirm) the run is treated as declined.
func (m *Manager) Confirm(pending model.Plan) error {
	if len(pending) == 0 || m.settings.AutoConfirm {
		return nil
	}

	in := m.Input
	if in == nil {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			m.log.Error().Msg("confirmation required but stdin is not a terminal; use -yes")
			return model.ErrDeclined
		}
		in = os.Stdin
	}

	kind := strings.ToUpper(string(pending[0].Kind))
	fmt.Printf("---> Download ERA5 %s data? (y/n) ", kind)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	answer = strings.TrimSpace(answer)

	if strings.EqualFold(answer, "y") || answer == "1" {
		return nil
	}

	m.log.Error().Str("answer", answer).Msg("download declined")
	return model.ErrDeclined
}

// Run fetches every pending descriptor through a worker pool of
// Settings.Concurrency workers. Completion order is not defined. A
// failing request is recorded and does not stop the other workers; if
// any request failed, Run returns a RetrievalError naming all of them
// after the pool has drained.
func (m *Manager) Run(ctx context.Context, pending model.Plan) error {
	if len(pending) == 0 {
		return nil
	}

	atomic.StoreInt32(&m.totalFiles, int32(len(pending)))
	atomic.StoreInt32(&m.fetchedFiles, 0)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.Concurrency)

	for _, d := range pending {
		d := d // capture
		g.Go(func() error {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Requesting %s", d.Name()), Level: LevelVerbose})
			m.log.Info().Str("dataset", d.Dataset).Str("target", d.Name()).Msg("retrieval started")

			if err := m.client.Retrieve(ctx, d.Dataset, cds.RequestParams(d), d.TargetPath); err != nil {
				m.recordFailure(d, err)
				m.progress(ProgressEvent{Message: fmt.Sprintf("Error retrieving %s: %v", d.Name(), err), Level: LevelError})
				m.log.Error().Err(err).Str("target", d.Name()).Msg("retrieval failed")
				return nil // keep sibling requests running
			}

			atomic.AddInt32(&m.fetchedFiles, 1)
			m.progress(ProgressEvent{Message: d.Name() + " complete", Level: LevelSuccess})
			m.log.Info().Str("target", d.Name()).Msg("retrieval complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failed) > 0 {
		return &model.RetrievalError{Failed: m.failed}
	}
	return nil
}

// RetrieveMonthlyMeans issues the single monthly-means request backing
// the downstream precipitation bias correction. It covers all twelve
// months of every year spanned by the date range widened by one month
// on each side, and always downloads: no existence check, no prompt.
func (m *Manager) RetrieveMonthlyMeans(ctx context.Context) error {
	start, end, err := m.settings.Dates()
	if err != nil {
		return err
	}

	years := planner.MonthlyMeanYears(start, end)
	target := model.MonthlyMeansPath(m.settings.OutputDir)
	params := cds.MonthlyMeansParams(years, m.settings.BBox)

	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Requesting monthly precipitation means for %d-%d", years[0], years[len(years)-1]),
		Level:   LevelInfo,
	})
	m.log.Info().Ints("years", years).Str("target", target).Msg("monthly means retrieval started")

	if err := m.client.Retrieve(ctx, planner.MonthlyMeansDataset, params, target); err != nil {
		m.log.Error().Err(err).Msg("monthly means retrieval failed")
		return fmt.Errorf("retrieving monthly means: %w", err)
	}

	m.progress(ProgressEvent{Message: "tpmm.nc complete", Level: LevelSuccess})
	m.log.Info().Str("target", target).Msg("monthly means retrieval complete")
	return nil
}

// Progress returns the number of completed and planned downloads for
// the current Run.
func (m *Manager) Progress() (fetched, total int32) {
	return atomic.LoadInt32(&m.fetchedFiles), atomic.LoadInt32(&m.totalFiles)
}

func (m *Manager) recordFailure(d model.RequestDescriptor, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, model.FailedRequest{Target: d.Name(), Err: err})
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
