// Package prompts rotates caption templates so consecutive posts do not repeat.
package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"crash_watcher/internal/jsonfile"
)

const DefaultMaxRecent = 12

var ErrEmptyPool = errors.New("prompt pool is empty")

// Ledger is the most-recent-first list of captions already used.
// A bare JSON string decodes as a single-element ledger.
type Ledger []string

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = Ledger{single}
		return nil
	}
	return fmt.Errorf("prompt ledger must be a list of strings or a string")
}

// Select picks uniformly from the pool entries not in recent.
// When every entry was used recently the whole pool is eligible again.
func Select(pool []string, recent Ledger, rng *rand.Rand) (string, error) {
	if len(pool) == 0 {
		return "", ErrEmptyPool
	}
	used := make(map[string]struct{}, len(recent))
	for _, p := range recent {
		used[p] = struct{}{}
	}
	available := make([]string, 0, len(pool))
	for _, p := range pool {
		if _, ok := used[p]; !ok {
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		available = pool
	}
	return available[rng.IntN(len(available))], nil
}

// Record moves chosen to the front of recent and truncates to limit entries.
func Record(chosen string, recent Ledger, limit int) Ledger {
	if limit <= 0 {
		limit = DefaultMaxRecent
	}
	out := make(Ledger, 0, len(recent)+1)
	out = append(out, chosen)
	for _, p := range recent {
		if p != chosen {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Load reads the ledger at path; failures yield an empty ledger.
func Load(logger *slog.Logger, path string) Ledger {
	ledger, _ := jsonfile.Load[Ledger](logger, path, nil)
	if ledger == nil {
		ledger = Ledger{}
	}
	return ledger
}

func Save(path string, ledger Ledger) error {
	if ledger == nil {
		ledger = Ledger{}
	}
	return jsonfile.Save(path, []string(ledger))
}

// Equal reports whether two ledgers hold the same captions in the same order.
func Equal(a, b Ledger) bool {
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
