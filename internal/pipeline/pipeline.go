// Package pipeline runs one full watch cycle: monthly reports, feed fetch, classification,
// duplicate suppression, posting and ledger updates.
//
// A run owns every state file for its duration. State is read once at the start and
// written once at the end; concurrent runs against the same state directory are not supported.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"crash_watcher/internal/classify"
	"crash_watcher/internal/config"
	"crash_watcher/internal/dedup"
	"crash_watcher/internal/formatting"
	"crash_watcher/internal/history"
	"crash_watcher/internal/metrics"
	"crash_watcher/internal/model"
	"crash_watcher/internal/monthly"
	"crash_watcher/internal/notify"
	"crash_watcher/internal/prompts"
	"crash_watcher/internal/roadway"
	"crash_watcher/internal/store"
)

// Feed returns the current incident batch in delivery order. It never fails; an
// unreachable feed yields an empty batch.
type Feed interface {
	Fetch(ctx context.Context, box model.BoundingBox) []model.Incident
}

// Geocoder resolves a locality name, or "unknown".
type Geocoder interface {
	City(ctx context.Context, c model.Coordinate) string
}

// Audit records runs and posts. Failures are logged and never affect the run.
type Audit interface {
	StartRun(ctx context.Context, ts time.Time) (string, error)
	FinishRun(ctx context.Context, r store.Run, ts time.Time) error
	RecordPost(ctx context.Context, p *store.Post) error
}

// Deps are the collaborators a Pipeline talks to. Audit and Metrics are optional.
type Deps struct {
	Feed     Feed
	Geocoder Geocoder
	Poster   monthly.Poster
	Audit    Audit
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	Rand     *rand.Rand
}

type Pipeline struct {
	cfg        config.Config
	classifier *classify.Classifier
	detector   *dedup.Detector
	reporter   *monthly.Reporter
	deps       Deps
	logger     *slog.Logger
}

// Summary tallies one run.
type Summary struct {
	RunID        string
	Fetched      int
	Posted       int
	Duplicates   int
	Failed       int
	Skipped      int
	Unclassified int
	Reports      int
}

func New(cfg config.Config, deps Deps) (*Pipeline, error) {
	if deps.Feed == nil || deps.Geocoder == nil || deps.Poster == nil {
		return nil, fmt.Errorf("pipeline needs a feed, a geocoder and a poster")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	classifier, err := classify.New(cfg.Roadways)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		detector:   dedup.New(cfg.DuplicateWindow, cfg.DuplicateDistanceKm, deps.Logger),
		reporter:   &monthly.Reporter{Poster: deps.Poster, Cutoff: cfg.ReportCutoff, Logger: deps.Logger},
		deps:       deps,
		logger:     deps.Logger,
	}, nil
}

// roadState is the in-memory state of one roadway for the duration of a run.
type roadState struct {
	rw            roadway.Roadway
	loaded        []model.SeenEntry
	hist          []model.SeenEntry
	loadedPrompts prompts.Ledger
	prompts       prompts.Ledger
	counter       *monthly.Counter
	counted       bool
}

// Run executes one cycle. Only context cancellation of the caller is reported as an error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	started := p.deps.Now()
	now := started.In(p.cfg.Location)
	sum := Summary{RunID: p.startRun(ctx, started)}
	logger := p.logger.With("run_id", sum.RunID)
	logger.Info("run started", "at", now.Format(time.RFC3339))

	states := make(map[roadway.Key]*roadState, len(p.cfg.Roadways))
	for _, rw := range p.cfg.Roadways {
		st := p.loadState(logger, rw, now)
		states[rw.Key] = st
		p.monthlyCheck(ctx, logger, st, now, &sum)
	}

	incidents := p.deps.Feed.Fetch(ctx, p.cfg.BoundingBox)
	sum.Fetched = len(incidents)
	if p.deps.Metrics != nil {
		p.deps.Metrics.FeedAlerts(len(incidents))
	}
	logger.Info("incidents received", "count", len(incidents))

	handled := make(map[string]struct{})
	for _, inc := range incidents {
		p.process(ctx, logger, inc, states, handled, &sum)
	}

	for _, rw := range p.cfg.Roadways {
		p.saveState(logger, states[rw.Key])
	}

	finished := p.deps.Now()
	p.finishRun(ctx, logger, sum, finished)
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunFinished(started, finished)
	}
	logger.Info("run finished",
		"fetched", sum.Fetched,
		"posted", sum.Posted,
		"duplicates", sum.Duplicates,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"unclassified", sum.Unclassified,
		"reports", sum.Reports,
	)
	return sum, ctx.Err()
}

func (p *Pipeline) loadState(logger *slog.Logger, rw roadway.Roadway, now time.Time) *roadState {
	l := logger.With("roadway", rw.Key.String())
	loaded := history.Load(l, rw.Files.Seen)
	ledger := prompts.Load(l, rw.Files.Prompts)
	return &roadState{
		rw:            rw,
		loaded:        loaded,
		hist:          history.Purge(loaded, now.UTC(), p.cfg.PurgeThreshold, l),
		loadedPrompts: ledger,
		prompts:       ledger,
		counter:       monthly.Load(l, rw.Files.Monthly, now),
	}
}

func (p *Pipeline) monthlyCheck(ctx context.Context, logger *slog.Logger, st *roadState, now time.Time, sum *Summary) {
	out := p.reporter.Check(ctx, st.rw, st.counter, now)
	if out.Trigger == monthly.NotDue || out.Text == "" {
		return
	}
	status := store.StatusFailed
	if out.Posted {
		status = store.StatusPosted
		sum.Reports++
	}
	p.recordPost(ctx, logger, &store.Post{
		RunID:   sum.RunID,
		Roadway: st.rw.Key.String(),
		Kind:    store.KindReport,
		Ref:     out.Period.Format("2006-01"),
		Status:  status,
		Body:    out.Text,
	})
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, inc model.Incident, states map[roadway.Key]*roadState, handled map[string]struct{}, sum *Summary) {
	if inc.ID == "" || inc.Published == "" {
		logger.Warn("skipping alert with missing id or timestamp", "alert_id", inc.ID, "street", inc.Street)
		p.count(roadway.None, metrics.OutcomeSkipped)
		sum.Skipped++
		return
	}
	l := logger.With("alert_id", inc.ID)
	if inc.Kind != model.KindAccident {
		l.Debug("skipping non-accident alert", "kind", inc.Kind)
		p.count(roadway.None, metrics.OutcomeSkipped)
		sum.Skipped++
		return
	}
	if _, ok := handled[inc.ID]; ok {
		l.Info("alert already handled this run")
		sum.Skipped++
		return
	}
	key := p.classifier.Classify(inc.Street)
	st, ok := states[key]
	if !ok {
		l.Info("alert does not match a monitored roadway", "street", inc.Street)
		p.count(roadway.None, metrics.OutcomeUnclassified)
		sum.Unclassified++
		return
	}
	l = l.With("roadway", key.String())
	handled[inc.ID] = struct{}{}

	if p.detector.IsDuplicate(inc, st.hist) {
		l.Info("suppressing duplicate alert")
		p.count(key, metrics.OutcomeDuplicate)
		sum.Duplicates++
		return
	}

	prompt, err := prompts.Select(st.rw.Prompts, st.prompts, p.deps.Rand)
	if err != nil {
		l.Error("cannot pick a prompt", "err", err)
		p.count(key, metrics.OutcomePostFailed)
		sum.Failed++
		return
	}
	city := p.deps.Geocoder.City(ctx, inc.Location())
	msg := formatting.Compose(st.rw, prompt, inc, city, p.cfg.Location)
	post := notify.Post{
		Text: msg.Text,
		Link: &notify.Link{URI: msg.MapURL, Title: formatting.MapLinkTitle, Description: msg.Description},
	}
	l.Info("posting alert", "prompt", prompt)
	rec := &store.Post{RunID: sum.RunID, Roadway: key.String(), Kind: store.KindIncident, Ref: inc.ID, Prompt: prompt, Body: msg.Text}
	if err := p.deps.Poster.Send(ctx, st.rw.Credentials, post); err != nil {
		l.Error("post failed; alert left unseen for the next run", "err", err)
		rec.Status = store.StatusFailed
		p.recordPost(ctx, l, rec)
		p.count(key, metrics.OutcomePostFailed)
		sum.Failed++
		return
	}
	rec.Status = store.StatusPosted
	p.recordPost(ctx, l, rec)

	st.counter.Increment()
	st.counted = true
	st.prompts = prompts.Record(prompt, st.prompts, p.cfg.MaxRecentPrompts)
	st.hist = history.Append(st.hist, model.NewSeenEntry(inc))
	p.count(key, metrics.OutcomePosted)
	sum.Posted++
}

func (p *Pipeline) saveState(logger *slog.Logger, st *roadState) {
	l := logger.With("roadway", st.rw.Key.String())
	if history.Changed(st.loaded, st.hist) {
		if err := history.Save(st.rw.Files.Seen, st.hist); err != nil {
			l.Error("could not save history", "path", st.rw.Files.Seen, "err", err)
		} else {
			l.Info("history updated", "path", st.rw.Files.Seen, "entries", len(st.hist))
		}
	} else {
		l.Info("no history changes", "path", st.rw.Files.Seen)
	}
	if !prompts.Equal(st.loadedPrompts, st.prompts) {
		if err := prompts.Save(st.rw.Files.Prompts, st.prompts); err != nil {
			l.Error("could not save prompt ledger", "path", st.rw.Files.Prompts, "err", err)
		}
	}
	if st.counted {
		if err := st.counter.Save(); err != nil {
			l.Error("could not save monthly counter", "path", st.rw.Files.Monthly, "err", err)
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.MonthlyCount(st.rw.Key.String(), st.counter.Count())
	}
}

func (p *Pipeline) count(key roadway.Key, outcome string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.Incident(key.String(), outcome)
	}
}

func (p *Pipeline) startRun(ctx context.Context, ts time.Time) string {
	if p.deps.Audit != nil {
		id, err := p.deps.Audit.StartRun(ctx, ts)
		if err == nil {
			return id
		}
		p.logger.Warn("audit start failed", "err", err)
	}
	return uuid.NewString()
}

func (p *Pipeline) finishRun(ctx context.Context, logger *slog.Logger, sum Summary, ts time.Time) {
	if p.deps.Audit == nil {
		return
	}
	run := store.Run{
		RunID:         sum.RunID,
		AlertsFetched: sum.Fetched,
		Posted:        sum.Posted,
		Duplicates:    sum.Duplicates,
		Failed:        sum.Failed,
		Skipped:       sum.Skipped + sum.Unclassified,
	}
	if err := p.deps.Audit.FinishRun(context.WithoutCancel(ctx), run, ts); err != nil {
		logger.Warn("audit finish failed", "err", err)
	}
}

func (p *Pipeline) recordPost(ctx context.Context, logger *slog.Logger, rec *store.Post) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.Post(rec.Roadway, rec.Kind, rec.Status)
	}
	if p.deps.Audit == nil {
		return
	}
	rec.CreatedAt = p.deps.Now()
	if err := p.deps.Audit.RecordPost(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("audit post record failed", "err", err)
	}
}
