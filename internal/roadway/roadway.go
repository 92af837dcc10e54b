// Package roadway defines the closed set of monitored roadways and the configuration record each carries.
package roadway

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Key identifies a monitored roadway. The zero value is None.
type Key int

const (
	None Key = iota
	Route28
	ParkwayEast
)

// Keys lists every roadway in classification priority order.
var Keys = []Key{Route28, ParkwayEast}

func (k Key) String() string {
	switch k {
	case Route28:
		return "ROUTE28"
	case ParkwayEast:
		return "PARKWAYEAST"
	default:
		return "NONE"
	}
}

// DisplayName is the human-facing roadway name used in report titles.
func (k Key) DisplayName() string {
	switch k {
	case Route28:
		return "Route 28"
	case ParkwayEast:
		return "Parkway East"
	default:
		return "Unknown"
	}
}

// ParseKey maps a configuration key such as "ROUTE28" to its Key.
func ParseKey(s string) (Key, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROUTE28":
		return Route28, nil
	case "PARKWAYEAST":
		return ParkwayEast, nil
	}
	return None, fmt.Errorf("unknown roadway key %q", s)
}

// Rules is the data-driven rule-set the classifier compiles for a roadway.
type Rules struct {
	// Patterns are case-insensitive regular expressions.
	Patterns []string `json:"patterns" yaml:"patterns"`
	// Number matches as a bare substring unless one of NumberExclusions is also present.
	Number           string   `json:"number" yaml:"number"`
	NumberExclusions []string `json:"number_exclusions" yaml:"number_exclusions"`
	// Aliases are case-insensitive substrings.
	Aliases []string `json:"aliases" yaml:"aliases"`
	// Excludes veto a match when any is present, e.g. "BUS" for business routes.
	Excludes []string `json:"excludes" yaml:"excludes"`
}

type Emojis struct {
	Intro      string `json:"intro" yaml:"intro"`
	Location   string `json:"location" yaml:"location"`
	ReportedAt string `json:"reported_at" yaml:"reported_at"`
}

type Credentials struct {
	Handle      string
	AppPassword string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Handle) != "" && strings.TrimSpace(c.AppPassword) != ""
}

// Files are the per-roadway state ledgers.
type Files struct {
	Seen    string `json:"seen_file" yaml:"seen_file"`
	Prompts string `json:"prompts_file" yaml:"prompts_file"`
	Monthly string `json:"monthly_file" yaml:"monthly_file"`
}

// Roadway is the immutable configuration record for one monitored road system.
type Roadway struct {
	Key             Key
	Rules           Rules
	Prompts         []string
	ReportTemplate  string
	Hashtags        string
	Emojis          Emojis
	Credentials     Credentials
	ReportImagePath string
	Files           Files
}

// ReportData is the input to a roadway's monthly report template.
type ReportData struct {
	Month string
	Year  int
	Count int
}

// RenderReport executes the report template.
func (r Roadway) RenderReport(data ReportData) (string, error) {
	tmpl, err := template.New(r.Key.String()).Option("missingkey=error").Parse(r.ReportTemplate)
	if err != nil {
		return "", fmt.Errorf("parse report template for %s: %w", r.Key, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report for %s: %w", r.Key, err)
	}
	return buf.String(), nil
}
