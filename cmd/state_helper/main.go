// Command state_helper prints what the watcher's ledgers currently hold for each roadway:
// history size and staleness, the recent-prompt window and the monthly counter.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"crash_watcher/internal/config"
	"crash_watcher/internal/history"
	"crash_watcher/internal/logging"
	"crash_watcher/internal/monthly"
	"crash_watcher/internal/prompts"
)

type roadwaySummary struct {
	Roadway       string `json:"roadway"`
	SeenEntries   int    `json:"seen_entries"`
	StaleEntries  int    `json:"stale_entries"`
	Malformed     int    `json:"malformed_entries"`
	RecentPrompts int    `json:"recent_prompts"`
	MonthlyCount  int    `json:"monthly_count"`
	LastReset     string `json:"last_reset_date"`
	ReportDue     string `json:"report_due"`
}

func main() {
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Parse()

	logger := logging.NewWithWriter(os.Stderr, "warn")
	cfg, err := config.Load(logger)
	if err != nil && !errors.Is(err, config.ErrMissingCredentials) {
		logging.Critical(logger, "load config", "err", err)
		os.Exit(1)
	}

	rows := summarize(cfg, time.Now(), logger)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			logger.Error("write json", "err", err)
			os.Exit(1)
		}
		return
	}
	printTable(os.Stdout, rows)
}

// summarize only reads the ledgers. Files that do not exist are reported as empty
// and are not created.
func summarize(cfg config.Config, now time.Time, logger *slog.Logger) []roadwaySummary {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	out := make([]roadwaySummary, 0, len(cfg.Roadways))
	for _, rw := range cfg.Roadways {
		row := roadwaySummary{Roadway: rw.Key.String()}
		entries := history.Load(logger, rw.Files.Seen)
		row.SeenEntries = len(entries)
		cutoff := now.Add(-cfg.PurgeThreshold)
		for _, e := range entries {
			if e.Validate() != nil {
				row.Malformed++
				continue
			}
			ts, err := e.PublishedAt()
			if err != nil {
				row.Malformed++
				continue
			}
			if ts.Before(cutoff) {
				row.StaleEntries++
			}
		}
		row.RecentPrompts = len(prompts.Load(logger, rw.Files.Prompts))

		state, err := readMonthly(rw.Files.Monthly)
		switch {
		case err == nil:
			row.MonthlyCount = state.Count
			row.LastReset = state.LastReset
			if last, perr := state.LastResetDate(loc); perr == nil {
				trigger, period := monthly.Due(now, last, cfg.ReportCutoff)
				row.ReportDue = trigger.String()
				if trigger != monthly.NotDue {
					row.ReportDue += " (" + period.Format("January 2006") + ")"
				}
			}
		case errors.Is(err, os.ErrNotExist):
			row.ReportDue = "uninitialized"
		default:
			row.ReportDue = "unreadable"
			logger.Warn("monthly ledger unreadable", "path", rw.Files.Monthly, "err", err)
		}
		out = append(out, row)
	}
	return out
}

func readMonthly(path string) (monthly.State, error) {
	var state monthly.State
	data, err := os.ReadFile(path)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, err
	}
	return state, nil
}

func printTable(w io.Writer, rows []roadwaySummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROADWAY\tSEEN\tSTALE\tMALFORMED\tPROMPTS\tMONTHLY\tLAST RESET\tREPORT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Roadway, r.SeenEntries, r.StaleEntries, r.Malformed, r.RecentPrompts, r.MonthlyCount, r.LastReset, r.ReportDue)
	}
	tw.Flush()
}
