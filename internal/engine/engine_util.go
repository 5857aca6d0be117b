package engine

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeAnswer trims the answer and puts it in NFC so that the same word
// typed on different keyboards compares equal when votes are counted.
func NormalizeAnswer(answer string) string {
	return norm.NFC.String(strings.TrimSpace(answer))
}

func RoundDuration(categories int, perCategory time.Duration) time.Duration {
	return time.Duration(categories) * perCategory
}

// NormalizeLetters validates and deduplicates a letter set, keeping order.
func NormalizeLetters(letters []string) ([]string, error) {
	out := make([]string, 0, len(letters))
	seen := map[string]bool{}
	for _, l := range letters {
		l = norm.NFC.String(strings.TrimSpace(l))
		if utf8.RuneCountInString(l) != 1 {
			return nil, ErrBadLetter
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, ErrNoLetters
	}
	return out, nil
}

func ValidateCategories(categories []string) error {
	if len(categories) == 0 {
		return ErrNoCategories
	}
	if len(categories) > MaxCategories {
		return ErrTooManyCategories
	}
	return nil
}

func ContainsCategory(categories []string, category string) bool {
	return slices.Contains(categories, category)
}
