package monthly

import (
	"context"
	"log/slog"
	"time"

	"crash_watcher/internal/notify"
	"crash_watcher/internal/roadway"
)

// ReportImageAlt is the alt text attached to the monthly report image.
const ReportImageAlt = "The Count from Sesame Street counting crashes"

// Poster publishes a post for a roadway account.
type Poster interface {
	Send(ctx context.Context, creds roadway.Credentials, post notify.Post) error
}

// Reporter posts the monthly summary and resets the counter once the post lands.
type Reporter struct {
	Poster Poster
	Cutoff Cutoff
	Logger *slog.Logger
}

// Outcome describes one Check call.
type Outcome struct {
	Trigger Trigger
	Period  time.Time
	Count   int
	Text    string
	Posted  bool
	Err     error
}

// Check runs the trigger rule for rw and, when due, posts the report. The counter is
// reset and saved only after a successful post; a failure leaves it untouched so the
// next run retries.
func (r *Reporter) Check(ctx context.Context, rw roadway.Roadway, c *Counter, now time.Time) Outcome {
	logger := r.Logger.With("roadway", rw.Key.String())
	lastReset, err := c.State().LastResetDate(now.Location())
	if err != nil {
		logger.Warn("unparseable last reset date", "value", c.State().LastReset, "err", err)
	}
	trigger, period := Due(now, lastReset, r.Cutoff)
	if trigger == NotDue {
		logger.Info("monthly report not due", "last_reset", c.State().LastReset)
		return Outcome{Trigger: NotDue}
	}
	out := Outcome{Trigger: trigger, Period: period, Count: c.Count()}
	text, err := rw.RenderReport(roadway.ReportData{
		Month: period.Month().String(),
		Year:  period.Year(),
		Count: c.Count(),
	})
	if err != nil {
		logger.Error("cannot render monthly report", "err", err)
		out.Err = err
		return out
	}
	out.Text = text
	post := notify.Post{Text: text}
	if rw.ReportImagePath != "" {
		post.Image = &notify.Image{Path: rw.ReportImagePath, Alt: ReportImageAlt}
	}
	logger.Info("posting monthly report", "trigger", trigger.String(), "month", period.Month().String(), "count", out.Count)
	if err := r.Poster.Send(ctx, rw.Credentials, post); err != nil {
		logger.Error("monthly report post failed; counter kept for retry", "err", err)
		out.Err = err
		return out
	}
	out.Posted = true
	c.Reset(now)
	if err := c.Save(); err != nil {
		logger.Error("could not save reset monthly counter", "err", err)
	}
	logger.Info("monthly counter reset", "date", c.State().LastReset)
	return out
}
