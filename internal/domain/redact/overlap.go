package redact

import "sort"

// findCandidates runs every detector over s and returns all gate-passing
// matches, unsorted duplicates and overlaps included; resolveOverlaps does
// the pruning.
func findCandidates(s string) []Match {
	var out []Match
	for _, d := range detectors {
		locs := d.re.FindAllStringIndex(s, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			text := s[start:end]

			if d.entity == EntityURL {
				trimmed := trimURL(text)
				end = start + len(trimmed)
				text = trimmed
			}
			if d.validate != nil && !d.validate(text) {
				continue
			}
			out = append(out, Match{Start: start, End: end, EntityType: d.entity, Confidence: d.confidence})
		}
	}
	return out
}

// resolveOverlaps sorts candidates by (start asc, confidence desc, length
// desc) and sweeps left to right, keeping a match only if it does not
// overlap one already kept. Because of the sort order, the match already
// kept at an overlapping position is always the earlier-starting or
// higher-confidence (or, on a confidence tie, longer) one.
func resolveOverlaps(matches []Match) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		li := matches[i].End - matches[i].Start
		lj := matches[j].End - matches[j].Start
		return li > lj
	})

	var kept []Match
	for _, m := range matches {
		overlaps := false
		for _, k := range kept {
			if m.Start < k.End && k.Start < m.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	return kept
}

// applyPlaceholders substitutes kept matches right-to-left so earlier
// byte offsets stay valid as later (higher-offset) replacements are made.
func applyPlaceholders(s string, kept []Match) string {
	if len(kept) == 0 {
		return s
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start > kept[j].Start })

	out := s
	for _, m := range kept {
		ph, ok := placeholder[m.EntityType]
		if !ok {
			continue
		}
		out = out[:m.Start] + ph + out[m.End:]
	}
	return out
}
