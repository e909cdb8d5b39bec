package services

import (
	"sort"
	"strings"
	"sync"

	"sevadesk/config"
	"sevadesk/internal/events"
	"sevadesk/internal/logger"
	"sevadesk/internal/utils"
)

// SuggestService serves as-you-type completions over the canonical service
// catalog. The whole index lives in memory as pre-folded strings, so a
// lookup is a linear scan plus a sort over at most a few hundred entries
// and stays well under a frame budget. Matching is case and diacritic
// insensitive.
type SuggestService struct {
	mu      sync.RWMutex
	entries []suggestEntry
	usage   map[string]int
	limit   int
	log     logger.Logger
}

type suggestEntry struct {
	name   string
	folded string
}

// canonicalCutoff is the minimum similarity for an unrecognized name to
// snap to an existing catalog entry instead of becoming a new suggestion.
const canonicalCutoff = 0.8

func NewSuggestService(cfg config.Config, bus *events.EventBus) *SuggestService {
	s := &SuggestService{
		usage: make(map[string]int),
		limit: cfg.SuggestionLimit,
		log:   logger.New("SuggestService"),
	}

	bus.Subscribe(events.SUGGESTION_CHANNEL, func(event events.Event) error {
		if event.Type != events.SUGGESTION_APPROVED {
			return nil
		}
		if name, ok := event.Data["service"].(string); ok && name != "" {
			s.Add(name)
		}
		return nil
	})

	return s
}

// SetIndex replaces the catalog wholesale. Usage counts for names that
// survive the swap are kept.
func (s *SuggestService) SetIndex(names []string) {
	entries := make([]suggestEntry, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = utils.CollapseSpaces(name)
		if name == "" {
			continue
		}
		folded := utils.Fold(name)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		entries = append(entries, suggestEntry{name: name, folded: folded})
	}

	s.mu.Lock()
	s.entries = entries
	for name := range s.usage {
		if _, kept := seen[utils.Fold(name)]; !kept {
			delete(s.usage, name)
		}
	}
	s.mu.Unlock()

	s.log.Function("SetIndex").Info("Suggestion index rebuilt", "entries", len(entries))
}

// Add inserts one name into the catalog, typically after a suggestion is
// approved. A name already present (after folding) is a no-op.
func (s *SuggestService) Add(name string) {
	name = utils.CollapseSpaces(name)
	if name == "" {
		return
	}
	folded := utils.Fold(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.folded == folded {
			return
		}
	}
	s.entries = append(s.entries, suggestEntry{name: name, folded: folded})
}

// RecordUse bumps the popularity of a catalog name. Popular names float to
// the top of the prefix tier.
func (s *SuggestService) RecordUse(name string) {
	s.mu.Lock()
	s.usage[utils.CollapseSpaces(name)]++
	s.mu.Unlock()
}

// Size reports how many names are indexed.
func (s *SuggestService) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Suggest ranks catalog names against the query in two tiers. Prefix
// matches come first, most used then alphabetical; everything else follows
// by edit-distance similarity, ties going to the shorter then alphabetical
// name. The result is trimmed to the configured limit.
func (s *SuggestService) Suggest(query string) []string {
	q := utils.Fold(utils.CollapseSpaces(query))
	if q == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry suggestEntry
		score float64
	}
	var prefixed []suggestEntry
	var fuzzy []scored

	qRunes := []rune(q)
	for _, entry := range s.entries {
		if strings.HasPrefix(entry.folded, q) {
			prefixed = append(prefixed, entry)
			continue
		}
		fuzzy = append(fuzzy, scored{entry: entry, score: similarity(qRunes, []rune(entry.folded))})
	}

	sort.SliceStable(prefixed, func(i, j int) bool {
		ui, uj := s.usage[prefixed[i].name], s.usage[prefixed[j].name]
		if ui != uj {
			return ui > uj
		}
		return prefixed[i].folded < prefixed[j].folded
	})

	sort.SliceStable(fuzzy, func(i, j int) bool {
		if fuzzy[i].score != fuzzy[j].score {
			return fuzzy[i].score > fuzzy[j].score
		}
		li, lj := len(fuzzy[i].entry.name), len(fuzzy[j].entry.name)
		if li != lj {
			return li < lj
		}
		return fuzzy[i].entry.folded < fuzzy[j].entry.folded
	})

	results := make([]string, 0, s.limit)
	for _, entry := range prefixed {
		if len(results) == s.limit {
			return results
		}
		results = append(results, entry.name)
	}
	for _, match := range fuzzy {
		if len(results) == s.limit {
			return results
		}
		results = append(results, match.entry.name)
	}
	return results
}

// Canonicalize snaps a free-typed service name onto the catalog. An exact
// folded match always wins; otherwise the closest entry is taken when its
// similarity clears the cutoff. The second return is false when the name
// is genuinely new.
func (s *SuggestService) Canonicalize(name string) (string, bool) {
	folded := utils.Fold(utils.CollapseSpaces(name))
	if folded == "" {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best string
	bestScore := 0.0
	fRunes := []rune(folded)
	for _, entry := range s.entries {
		if entry.folded == folded {
			return entry.name, true
		}
		if score := similarity(fRunes, []rune(entry.folded)); score > bestScore {
			best, bestScore = entry.name, score
		}
	}

	if bestScore >= canonicalCutoff {
		return best, true
	}
	return "", false
}

// similarity is 1 minus the Levenshtein distance normalized by the longer
// length, so identical strings score 1 and disjoint ones approach 0.
func similarity(a, b []rune) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein is the classic two-row DP over runes.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
