package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"travelmap/internal/classify"
	"travelmap/pkg/checkpoint"
	"travelmap/pkg/config"
	"travelmap/pkg/errors"
	"travelmap/pkg/instagram"
	"travelmap/pkg/logger"
	"travelmap/pkg/storage"
	"travelmap/pkg/travel"
)

// ErrCheckpointExists is returned when an unfinished fetch exists and the
// caller asked neither to resume nor to restart
var ErrCheckpointExists = stderrors.New("an unfinished fetch exists: use --resume to continue or --force-restart to start fresh")

// MediaSource is the part of the Graph API client the pipeline needs
type MediaSource interface {
	FetchProfile(ctx context.Context, userID string) (*instagram.Profile, error)
	FetchAllMedia(ctx context.Context, userID string, opts instagram.FetchOptions) ([]instagram.Media, error)
}

// Pipeline fetches posts, locates them and writes the travel-data documents
type Pipeline struct {
	source      MediaSource
	store       *storage.Manager
	checkpoints *checkpoint.Manager
	aggregator  *travel.Aggregator
	output      config.OutputConfig
	workers     int
	userID      string
	logger      logger.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithCheckpoints enables resumable fetches
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(p *Pipeline) { p.checkpoints = m }
}

// WithSource sets where posts come from. Clean and Stats work without one.
func WithSource(source MediaSource) Option {
	return func(p *Pipeline) { p.source = source }
}

// New creates a pipeline writing to store
func New(cfg *config.Config, store *storage.Manager, aggregator *travel.Aggregator, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		aggregator: aggregator,
		output:     cfg.Output,
		workers:    cfg.Extraction.Workers,
		userID:     cfg.Instagram.UserID,
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchOptions controls Fetch
type FetchOptions struct {
	Resume       bool
	ForceRestart bool
	// MaxPages stops after this many pages in this run (0 means all).
	// The checkpoint is kept so a later run can continue.
	MaxPages int
}

// FetchReport describes a Fetch run
type FetchReport struct {
	Profile   *instagram.Profile
	Fetched   int
	Resumed   bool
	Partial   bool
	Result    *travel.Result
	Summary   travel.Summary
	Backup    string
	StartedAt time.Time
	Duration  time.Duration
}

// Fetch downloads every post of the account, locates them and replaces the
// travel-data, summary and profile documents. An interrupted fetch leaves
// its checkpoint behind and returns the error.
func (p *Pipeline) Fetch(ctx context.Context, opts FetchOptions) (*FetchReport, error) {
	if p.source == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "no media source configured")
	}

	unlock, err := p.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &FetchReport{StartedAt: time.Now()}

	cp, err := p.prepareCheckpoint(opts)
	if err != nil {
		return nil, err
	}
	report.Resumed = cp != nil

	profile, err := p.source.FetchProfile(ctx, p.userID)
	if err != nil {
		if cp == nil {
			return nil, err
		}
		p.logger.WithError(err).Warn("Failed to refresh profile, continuing from checkpoint")
		profile = &instagram.Profile{ID: cp.UserID, Username: cp.Username, MediaCount: cp.MediaCount}
	}
	report.Profile = profile

	if cp == nil && p.checkpoints != nil {
		cp, err = p.checkpoints.Create(profile.Username, profile.ID, profile.MediaCount)
		if err != nil {
			p.logger.WithError(err).Warn("Failed to create checkpoint")
			cp = nil
		}
	}

	media, complete, err := p.fetchMedia(ctx, cp, profile, opts.MaxPages)
	report.Fetched = len(media)
	if err != nil {
		p.logger.WithError(err).WithField("fetched", len(media)).Error("Fetch interrupted")
		return report, err
	}
	if !complete {
		report.Partial = true
		p.logger.InfoWithFields("Stopped before the last page, documents left unchanged", map[string]interface{}{
			"fetched": len(media),
		})
		return report, nil
	}

	locs, err := classify.Run(ctx, media, p.workers, p.aggregator, p.logger)
	if err != nil {
		return report, err
	}
	report.Result = p.aggregator.Build(media, locs)
	report.Summary = travel.NewSummary(report.Result.Data, profile)

	if p.output.BackupBeforeWrite {
		if report.Backup, err = p.store.Backup(p.output.DataFile); err != nil {
			return report, err
		}
	}
	if err := p.write(report.Result.Data, &report.Summary, profile); err != nil {
		return report, err
	}

	if p.checkpoints != nil {
		if err := p.checkpoints.Delete(); err != nil {
			p.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	report.Duration = time.Since(report.StartedAt)
	logger.LogMetrics("fetch", map[string]interface{}{
		"fetched":             report.Fetched,
		"countries":           report.Summary.TotalCountries,
		"cities":              report.Summary.TotalCities,
		"posts_with_location": report.Summary.PostsWithLocation,
		"resumed":             report.Resumed,
		"partial":             report.Partial,
		"duration_ms":         report.Duration.Milliseconds(),
	})
	return report, nil
}

func (p *Pipeline) prepareCheckpoint(opts FetchOptions) (*checkpoint.Checkpoint, error) {
	if p.checkpoints == nil || !p.checkpoints.Exists() {
		return nil, nil
	}

	switch {
	case opts.ForceRestart:
		if err := p.checkpoints.Delete(); err != nil {
			p.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		return nil, nil
	case opts.Resume:
		cp, err := p.checkpoints.Load()
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to load checkpoint")
		}
		if cp != nil {
			p.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"username":  cp.Username,
				"fetched":   len(cp.Media),
				"last_page": cp.LastProcessedPage,
			})
		}
		return cp, nil
	default:
		return nil, ErrCheckpointExists
	}
}

// fetchMedia returns every post fetched so far and whether the last page
// was reached
func (p *Pipeline) fetchMedia(ctx context.Context, cp *checkpoint.Checkpoint, profile *instagram.Profile, maxPages int) ([]instagram.Media, bool, error) {
	if cp != nil && cp.Complete {
		return cp.Media, true, nil
	}

	opts := instagram.FetchOptions{
		MaxPages:      maxPages,
		ExpectedTotal: profile.MediaCount,
	}

	complete := false
	if cp != nil {
		opts.StartURL = cp.NextURL
		offset := cp.LastProcessedPage
		opts.OnPage = func(pageNum int, page *instagram.MediaPage, next string) error {
			complete = next == ""
			if err := p.checkpoints.RecordPage(cp, offset+pageNum, page.Data, next); err != nil {
				p.logger.WithError(err).Warn("Failed to update checkpoint")
			}
			return nil
		}
	} else {
		opts.OnPage = func(_ int, _ *instagram.MediaPage, next string) error {
			complete = next == ""
			return nil
		}
	}

	media, err := p.source.FetchAllMedia(ctx, profile.ID, opts)
	if cp != nil {
		return cp.Media, complete, err
	}
	return media, complete, err
}

func (p *Pipeline) write(data *travel.Data, summary *travel.Summary, profile *instagram.Profile) error {
	if err := p.store.WriteJSON(p.output.DataFile, data); err != nil {
		return err
	}
	if p.output.SummaryFile != "" {
		if err := p.store.WriteJSON(p.output.SummaryFile, summary); err != nil {
			return err
		}
	}
	if profile != nil && p.output.ProfileFile != "" {
		if err := p.store.WriteJSON(p.output.ProfileFile, profile); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the current travel-data document
func (p *Pipeline) Load() (*travel.Data, error) {
	var data travel.Data
	if err := p.store.ReadJSON(p.output.DataFile, &data); err != nil {
		return nil, err
	}
	if data.Countries == nil {
		data.Countries = map[string]*travel.Country{}
	}
	return &data, nil
}

// CleanReport describes a Clean run
type CleanReport struct {
	*travel.CleanReport
	Data    *travel.Data
	Backup  string
	Written bool
}

// Clean repairs the stored travel-data document. With dryRun set nothing
// is written.
func (p *Pipeline) Clean(opts travel.CleanOptions, dryRun bool) (*CleanReport, error) {
	unlock, err := p.store.Lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := p.Load()
	if err != nil {
		return nil, err
	}

	cleaned, changes := travel.NewCleaner(p.aggregator).Clean(data, opts)
	report := &CleanReport{CleanReport: changes, Data: cleaned}
	if dryRun {
		return report, nil
	}

	summary := travel.NewSummary(cleaned, nil)
	var previous travel.Summary
	if p.output.SummaryFile != "" {
		if err := p.store.ReadJSON(p.output.SummaryFile, &previous); err == nil {
			summary.Username = previous.Username
			summary.MediaCount = previous.MediaCount
		} else if !errors.Is(err, errors.ErrorTypeNotFound) {
			p.logger.WithError(err).Warn("Ignoring unreadable summary")
		}
	}

	// Cleaning always backs up, whatever BackupBeforeWrite says
	if report.Backup, err = p.store.Backup(p.output.DataFile); err != nil {
		return report, err
	}
	if err := p.write(cleaned, &summary, nil); err != nil {
		return report, err
	}
	report.Written = true
	return report, nil
}

// Stats assesses the stored travel-data document
func (p *Pipeline) Stats() (*travel.QualityReport, error) {
	data, err := p.Load()
	if err != nil {
		return nil, err
	}
	return travel.Assess(data, p.aggregator.Tables(), nil), nil
}
