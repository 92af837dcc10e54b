// Package classify maps a feed street label to at most one monitored roadway.
//
// Rule-sets are evaluated in the order they are configured and the first match wins.
// A label that could satisfy several rule-sets (for example "376 Route 28 Connector")
// resolves to the earliest one; no attempt is made to pick a "better" roadway.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"crash_watcher/internal/roadway"
)

type ruleSet struct {
	key              roadway.Key
	patterns         []*regexp.Regexp
	number           string
	numberExclusions []string
	aliases          []string
	excludes         []string
}

// Classifier holds compiled rule-sets in priority order.
type Classifier struct {
	sets []ruleSet
}

// New compiles the rules of each roadway. Order of roads is the priority order.
func New(roads []roadway.Roadway) (*Classifier, error) {
	c := &Classifier{}
	for _, rw := range roads {
		set := ruleSet{
			key:              rw.Key,
			number:           strings.TrimSpace(rw.Rules.Number),
			numberExclusions: upperAll(rw.Rules.NumberExclusions),
			aliases:          upperAll(rw.Rules.Aliases),
			excludes:         upperAll(rw.Rules.Excludes),
		}
		for _, expr := range rw.Rules.Patterns {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q for %s: %w", expr, rw.Key, err)
			}
			set.patterns = append(set.patterns, re)
		}
		c.sets = append(c.sets, set)
	}
	return c, nil
}

// Classify returns the first roadway whose rule-set matches label, or roadway.None.
func (c *Classifier) Classify(label string) roadway.Key {
	label = strings.TrimSpace(label)
	if label == "" {
		return roadway.None
	}
	upper := strings.ToUpper(label)
	for _, set := range c.sets {
		if set.matches(label, upper) {
			return set.key
		}
	}
	return roadway.None
}

func (s ruleSet) matches(label, upper string) bool {
	if containsAny(upper, s.excludes) {
		return false
	}
	for _, re := range s.patterns {
		if re.MatchString(label) {
			return true
		}
	}
	if containsAny(upper, s.aliases) {
		return true
	}
	if s.number != "" && strings.Contains(upper, s.number) {
		return !containsAny(upper, s.numberExclusions)
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
