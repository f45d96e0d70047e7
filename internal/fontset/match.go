package fontset

import "github.com/pscheid92/fontdiff/internal/domain"

// Match pairs before and after fonts by identity key.
//
// Pairs come out in after order (matched or after-only), followed by the
// before fonts nobody claimed, in before order. When several before fonts
// share a key only the first one is matched; the others stay before-only.
func Match(before, after []domain.Font) []domain.MatchedPair {
	lookup := make(map[Key]int, len(before))
	for i := range before {
		k := KeyOf(before[i])
		if _, taken := lookup[k]; !taken {
			lookup[k] = i
		}
	}

	consumed := make([]bool, len(before))
	pairs := make([]domain.MatchedPair, 0, len(before)+len(after))

	for i := range after {
		k := KeyOf(after[i])
		j, ok := lookup[k]
		if !ok {
			pairs = append(pairs, domain.MatchedPair{After: &after[i]})
			continue
		}
		delete(lookup, k)
		consumed[j] = true
		pairs = append(pairs, domain.MatchedPair{Before: &before[j], After: &after[i]})
	}

	for j := range before {
		if !consumed[j] {
			pairs = append(pairs, domain.MatchedPair{Before: &before[j]})
		}
	}
	return pairs
}

// PairKey returns the identity key shared by the fonts of a pair.
func PairKey(p domain.MatchedPair) Key {
	if p.After != nil {
		return KeyOf(*p.After)
	}
	return KeyOf(*p.Before)
}
