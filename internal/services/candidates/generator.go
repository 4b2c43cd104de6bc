// Package candidates turns a company name into plausible domain names.
package candidates

import (
	"context"
	"strings"
	"unicode"

	"domainfinder/internal/domain"
)

// LegalSuffixes are Norwegian company form abbreviations, tried in order.
// Only the first one the slug ends with is removed.
var LegalSuffixes = []string{"as", "asa", "ba", "da", "iks", "ks", "nuf", "sa", "sf"}

var (
	slugTLDs    = []string{".no", ".com", ".org", ".net"}
	patternTLDs = []string{".no", ".com"}
)

const (
	minSlugLen     = 3
	minFirstWord   = 3
	minCombinedLen = 4
)

// Strategy contributes candidate domains for an entity.
type Strategy interface {
	Name() string
	Candidates(ctx context.Context, e domain.Entity) Set
}

// Slug squeezes the whole name into one label.
type Slug struct{}

func (Slug) Name() string { return "slug" }

func (Slug) Candidates(_ context.Context, e domain.Entity) Set { return FromSlug(e.Name()) }

// Pattern builds domains from the leading words of the name.
type Pattern struct{}

func (Pattern) Name() string { return "pattern" }

func (Pattern) Candidates(_ context.Context, e domain.Entity) Set { return FromWords(e.Name()) }

// ReverseLookup would find domains registered to the organisation number.
// There is no data source for it yet, so it contributes nothing.
type ReverseLookup struct{}

func (ReverseLookup) Name() string { return "reverse_lookup" }

func (ReverseLookup) Candidates(context.Context, domain.Entity) Set { return Set{} }

// DefaultStrategies is the set the orchestrator unions for every entity.
func DefaultStrategies() []Strategy {
	return []Strategy{Slug{}, ReverseLookup{}, Pattern{}}
}

// Generate unions the name-based strategies. Empty names give an empty set.
func Generate(name string) Set {
	out := FromSlug(name)
	out.Union(FromWords(name))
	return out
}

// Slugify lower-cases the name, keeps ASCII letters and digits and strips at
// most one trailing legal suffix.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	for _, suffix := range LegalSuffixes {
		if strings.HasSuffix(slug, suffix) {
			return strings.TrimSuffix(slug, suffix)
		}
	}
	return slug
}

func FromSlug(name string) Set {
	out := Set{}
	slug := Slugify(name)
	if len(slug) < minSlugLen {
		return out
	}
	for _, tld := range slugTLDs {
		out.Add(slug + tld)
	}
	return out
}

// Words splits the name into words of letters, digits and underscores and
// keeps, lower-cased, only those made entirely of ASCII letters. "Bølgen"
// and "3M" are dropped rather than cut into fragments.
func Words(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if isASCIILetters(f) {
			words = append(words, f)
		}
	}
	return words
}

// FromWords builds the leading-word candidates. A trailing company-form word
// ("AS", "ASA") is not a name word and is ignored, so "Statoil ASA" does not
// yield statoilasa.no.
func FromWords(name string) Set {
	out := Set{}
	words := dropLegalForm(Words(name))
	if len(words) >= 1 && len(words[0]) >= minFirstWord {
		for _, tld := range patternTLDs {
			out.Add(words[0] + tld)
		}
	}
	if len(words) >= 2 {
		combined := words[0] + words[1]
		dashed := words[0] + "-" + words[1]
		for _, tld := range patternTLDs {
			if len(combined) >= minCombinedLen {
				out.Add(combined + tld)
			}
			out.Add(dashed + tld)
		}
	}
	return out
}

func dropLegalForm(words []string) []string {
	if len(words) < 2 {
		return words
	}
	last := words[len(words)-1]
	for _, suffix := range LegalSuffixes {
		if last == suffix {
			return words[:len(words)-1]
		}
	}
	return words
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return s != ""
}
