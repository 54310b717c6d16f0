// Package fingerprint implements the Fingerprint Engine (spec.md §4.4):
// scores candidate templates against command output, selects a winner, and
// derives a normalized device record from version/inventory captures.
package fingerprint

import (
	"sort"
	"strings"

	"github.com/netcapd/netcapd/internal/template"
)

// Scoring holds the bonus weights S1/S2/S3 and the Smin acceptance
// threshold, configurable per spec.md §4.4.
type Scoring struct {
	PerRecord  int // S1
	HasRequired int // S2
	VendorHint int // S3
	Minimum    int // Smin
}

// DefaultScoring matches the spec's documented defaults.
func DefaultScoring() Scoring {
	return Scoring{PerRecord: 5, HasRequired: 10, VendorHint: 3, Minimum: 1}
}

// Record is one structured record extracted by a template (one row for
// multi-record templates like inventory, a singleton for version).
type Record map[string]string

// ParseResult is the engine's output for one invocation (spec.md §4.4
// `Parse`).
type ParseResult struct {
	TemplateID string
	Vendor     string
	Records    []Record
	Score      int
	Matched    bool
}

// NoMatch is returned (as ParseResult.Matched == false) when no candidate
// reaches Scoring.Minimum; the caller still ingests the raw capture, per
// spec.md §7's policy that NoMatch is not a failure.
const NoMatch = ""

// Engine runs candidate templates from a Store and scores them.
type Engine struct {
	store   *template.Store
	scoring Scoring
}

// New builds an Engine over store with the given scoring weights.
func New(store *template.Store, scoring Scoring) *Engine {
	return &Engine{store: store, scoring: scoring}
}

// Parse scores every candidate template for commandText against rawOutput
// and returns the winner (spec.md §4.4).
func (e *Engine) Parse(commandText, rawOutput, vendorHint string) ParseResult {
	candidates := e.store.Candidates(commandText)
	type scored struct {
		def     *template.Definition
		records []Record
		score   int
	}
	var attempts []scored

	for _, ref := range candidates {
		def, ok := e.store.Get(ref.ID)
		if !ok {
			continue
		}
		records, ok := applyTemplate(def, rawOutput)
		if !ok {
			attempts = append(attempts, scored{def: def, score: 0})
			continue
		}
		score := e.score(def, records, vendorHint)
		attempts = append(attempts, scored{def: def, records: records, score: score})
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		if attempts[i].score != attempts[j].score {
			return attempts[i].score > attempts[j].score
		}
		return attempts[i].def.ID < attempts[j].def.ID
	})

	if len(attempts) == 0 || attempts[0].score < e.scoring.Minimum {
		return ParseResult{Matched: false}
	}

	winner := attempts[0]
	return ParseResult{
		TemplateID: winner.def.ID,
		Vendor:     winner.def.Vendor,
		Records:    winner.records,
		Score:      winner.score,
		Matched:    true,
	}
}

func (e *Engine) score(def *template.Definition, records []Record, vendorHint string) int {
	score := 0
	hasRequired := false
	for _, rec := range records {
		for _, f := range def.Fields {
			if v, ok := rec[f.Name]; ok && v != "" {
				score++
				if f.Required {
					hasRequired = true
				}
			}
		}
	}
	score += len(records) * e.scoring.PerRecord
	if hasRequired {
		score += e.scoring.HasRequired
	}
	if vendorHint != "" && strings.EqualFold(vendorHint, def.Vendor) {
		score += e.scoring.VendorHint
	}
	return score
}

// applyTemplate runs one template's field regexps against rawOutput. A
// single-record template fails structurally (score 0) only if every field
// pattern misses; multi-record templates collect one record per match of
// their anchor field (the first field in the definition).
func applyTemplate(def *template.Definition, rawOutput string) ([]Record, bool) {
	if len(def.Fields) == 0 {
		return nil, false
	}

	if !def.Multiple {
		rec := Record{}
		any := false
		for _, f := range def.Fields {
			m := f.Pattern.FindStringSubmatch(rawOutput)
			if len(m) > 1 {
				rec[f.Name] = strings.TrimSpace(m[1])
				any = true
			}
		}
		if !any {
			return nil, false
		}
		return []Record{rec}, true
	}

	anchor := def.Fields[0]
	matches := anchor.Pattern.FindAllStringSubmatchIndex(rawOutput, -1)
	if len(matches) == 0 {
		return nil, false
	}

	var records []Record
	for i, loc := range matches {
		end := len(rawOutput)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		chunk := rawOutput[loc[0]:end]
		rec := Record{}
		for _, f := range def.Fields {
			m := f.Pattern.FindStringSubmatch(chunk)
			if len(m) > 1 {
				rec[f.Name] = strings.TrimSpace(m[1])
			}
		}
		records = append(records, rec)
	}
	return records, true
}
