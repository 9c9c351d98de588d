// Package merge reconciles candidate records across chunks and backends by
// plurality voting into one record per (company, metric_name) pair.
//
// Grouping is exact-string on the trimmed metric name — near-duplicate
// metric names from different backends are not fuzzy-merged. The company
// half of the key is additionally case-folded for grouping only; display
// casing is the most frequent original spelling.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/model"
)

// votedFields enumerates the value-bearing fields in voting order. The
// order is fixed so notes and output bytes are deterministic.
var votedFields = []struct {
	name string
	get  func(model.CandidateRecord) string
	set  func(*model.MergedRecord, string)
}{
	{"value", func(c model.CandidateRecord) string { return c.Value }, func(m *model.MergedRecord, v string) { m.Value = v }},
	{"value_lastyear", func(c model.CandidateRecord) string { return c.ValueLastYear }, func(m *model.MergedRecord, v string) { m.ValueLastYear = v }},
	{"value_before2year", func(c model.CandidateRecord) string { return c.ValueBefore2Year }, func(m *model.MergedRecord, v string) { m.ValueBefore2Year = v }},
	{"YoY", func(c model.CandidateRecord) string { return c.YoY }, func(m *model.MergedRecord, v string) { m.YoY = v }},
	{"YoY_D", func(c model.CandidateRecord) string { return c.YoYD }, func(m *model.MergedRecord, v string) { m.YoYD = v }},
	{"unit", func(c model.CandidateRecord) string { return c.Unit }, func(m *model.MergedRecord, v string) { m.Unit = v }},
	{"year", func(c model.CandidateRecord) string { return c.Year }, func(m *model.MergedRecord, v string) { m.Year = v }},
	{"type", func(c model.CandidateRecord) string { return c.Type }, func(m *model.MergedRecord, v string) { m.Type = v }},
}

type groupKey struct {
	company string // case-folded
	metric  string
}

// Merge groups candidates by (company, metric_name) and resolves each
// value-bearing field by independent plurality voting. Ties break toward
// the candidate with the most recent chunk index, then the lexically
// smallest backend id, so two runs over the same candidates produce
// byte-identical output. Records are returned sorted by (company, metric).
func Merge(candidates []model.CandidateRecord) []model.MergedRecord {
	groups := make(map[groupKey][]model.CandidateRecord)
	for _, c := range candidates {
		metric := strings.TrimSpace(c.MetricName)
		if metric == "" {
			zap.L().Debug("merge: dropping candidate without metric name",
				zap.String("backend", c.BackendID),
				zap.Int("chunk", c.ChunkIndex),
			)
			continue
		}
		key := groupKey{company: foldKey(c.Company), metric: metric}
		groups[key] = append(groups[key], c)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].company != keys[j].company {
			return keys[i].company < keys[j].company
		}
		return keys[i].metric < keys[j].metric
	})

	merged := make([]model.MergedRecord, 0, len(keys))
	for _, k := range keys {
		merged = append(merged, mergeGroup(k.metric, groups[k]))
	}
	return merged
}

func mergeGroup(metric string, group []model.CandidateRecord) model.MergedRecord {
	rec := model.MergedRecord{
		MetricName: metric,
		Company:    electCompany(group),
		Support:    []string{},
	}

	trivial := len(group) == 1

	for _, f := range votedFields {
		e := electField(group, f.get)
		if e.winner == nil {
			continue
		}
		f.set(&rec, f.get(*e.winner))

		if f.name == "value" {
			rec.Support = e.supporters
			rec.PageID = e.winner.PageID
			rec.ParaID = e.winner.ParaID
			rec.BBox = e.winner.BBox
		}

		if trivial {
			continue
		}
		if e.tied {
			rec.Notes = append(rec.Notes, fmt.Sprintf("vote tie on %s", f.name))
		}
		if len(e.supporters)*2 < e.contributors {
			rec.Notes = append(rec.Notes, fmt.Sprintf("partial agreement on %s (%d/%d backends)",
				f.name, len(e.supporters), e.contributors))
		}
	}

	return rec
}

// Matches reports whether a candidate belongs to the merged record's group
// under the same key normalization used by Merge.
func Matches(c model.CandidateRecord, rec model.MergedRecord) bool {
	return strings.TrimSpace(c.MetricName) == rec.MetricName &&
		foldKey(c.Company) == foldKey(rec.Company)
}

// election is the outcome of plurality voting over one field.
type election struct {
	winner       *model.CandidateRecord // supplies the display value and provenance
	tied         bool
	supporters   []string // sorted distinct backend ids matching the elected value
	contributors int      // distinct backends that offered any value for the field
}

func electField(group []model.CandidateRecord, get func(model.CandidateRecord) string) election {
	votes := make(map[string]int)
	reps := make(map[string]*model.CandidateRecord)
	backendsByValue := make(map[string]map[string]bool)
	contributors := make(map[string]bool)

	for i := range group {
		raw := get(group[i])
		norm := NormalizeValue(raw)
		if norm == "" {
			continue
		}
		votes[norm]++
		contributors[group[i].BackendID] = true
		if backendsByValue[norm] == nil {
			backendsByValue[norm] = make(map[string]bool)
		}
		backendsByValue[norm][group[i].BackendID] = true
		if rep := reps[norm]; rep == nil || preferCandidate(&group[i], rep) {
			reps[norm] = &group[i]
		}
	}
	if len(votes) == 0 {
		return election{}
	}

	var winnerNorm string
	best := -1
	tieAtBest := false
	for norm, n := range votes {
		switch {
		case n > best:
			best, winnerNorm, tieAtBest = n, norm, false
		case n == best:
			tieAtBest = true
			a, b := reps[norm], reps[winnerNorm]
			if preferCandidate(a, b) {
				winnerNorm = norm
			} else if !preferCandidate(b, a) && norm < winnerNorm {
				// Same chunk, backend, and round on both sides: fall back to
				// the normalized value itself to keep the pick deterministic.
				winnerNorm = norm
			}
		}
	}

	supporters := make([]string, 0, len(backendsByValue[winnerNorm]))
	for id := range backendsByValue[winnerNorm] {
		supporters = append(supporters, id)
	}
	sort.Strings(supporters)

	return election{
		winner:       reps[winnerNorm],
		tied:         tieAtBest,
		supporters:   supporters,
		contributors: len(contributors),
	}
}

// preferCandidate orders tie-breaks: most recent chunk first, then the
// lexically smallest backend id, then the verify round over extract.
func preferCandidate(a, b *model.CandidateRecord) bool {
	if a.ChunkIndex != b.ChunkIndex {
		return a.ChunkIndex > b.ChunkIndex
	}
	if a.BackendID != b.BackendID {
		return a.BackendID < b.BackendID
	}
	return a.Round == model.RoundVerify && b.Round != model.RoundVerify
}

// electCompany picks the most frequent original (trimmed) company spelling,
// breaking frequency ties toward the lexically smallest spelling.
func electCompany(group []model.CandidateRecord) string {
	counts := make(map[string]int)
	for _, c := range group {
		counts[strings.TrimSpace(c.Company)]++
	}
	var winner string
	best := -1
	for spelling, n := range counts {
		if n > best || (n == best && spelling < winner) {
			best, winner = n, spelling
		}
	}
	return winner
}
