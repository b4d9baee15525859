// Package scoring ranks search candidates for a target song title. The score
// is a heuristic over noisy, crowd-uploaded metadata: derivative-content
// keywords push a candidate down, authenticity markers and title matches push
// it up, and popularity contributes only sub-linearly.
package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nhatdv/timnhac/internal/engine"
)

// Vocabulary holds the keyword sets the scorer matches against candidate
// titles. Injected so tests and localized deployments can supply their own.
type Vocabulary struct {
	// TrustedArtists are performer names and honorifics that indicate an
	// authentic rendition.
	TrustedArtists []string
	// UntrustedKeywords indicate amateur, compilation, or clickbait uploads.
	UntrustedKeywords []string
	// StrongPenalties are terms that almost always mean a derivative
	// recording, penalized individually.
	StrongPenalties []string
	// PromoTerms are promotional markers; harmless alone, a clickbait signal
	// when several are stuffed into one title.
	PromoTerms []string
}

// DefaultVocabulary returns the keyword sets tuned for Vietnamese
// revolutionary music uploads.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		TrustedArtists: []string{
			"trọng tấn", "anh thơ", "thu hiền", "quang thọ", "đăng dương",
			"trung đức", "lan anh", "tân nhàn", "việt hoàn", "nsnd", "nsưt",
		},
		UntrustedKeywords: []string{
			"thần đồng", "bolero", "thiếu nhi", "giọng ca nhí", "idol",
			"cover", "karaoke", "remix", "beat", "instrumental",
			"nonstop", "dj", "acoustic", "mashup", "parody",
			"tuyển tập", "liên khúc", "lk", "medley", "album",
			"full", "những bài hát", "top", "hay nhất",
		},
		StrongPenalties: []string{"karaoke", "cover", "live"},
		PromoTerms: []string{
			"official", "mv", "full", "top", "hay nhất", "tuyển tập",
		},
	}
}

// Weights holds every scoring constant. The zero value is not useful; start
// from DefaultWeights.
type Weights struct {
	StrongPenalty    float64 // per distinct strong-penalty keyword
	UntrustedBase    float64 // once, when any untrusted keyword matches
	UntrustedPerTerm float64 // per distinct untrusted keyword

	TrustedBonus float64 // any trusted-artist marker present

	PhraseBonus     float64 // target title appears verbatim
	PhraseLeadBonus float64 // ...starting at position 0
	PhraseNearBonus float64 // ...starting within NearWindow runes
	NearWindow      int

	WordBonus float64 // per target word (>2 runes) found in the title

	// Title-length shaping, in runes. Buckets must stay monotone
	// non-increasing so longer titles never score better on length alone.
	ShortLen    int
	ShortBonus  float64
	MediumLen   int
	MediumBonus float64
	LongLen     int
	LongPenalty float64
	HugeLen     int
	HugePenalty float64

	// PromoThreshold is the number of distinct promo terms tolerated before
	// the density penalty kicks in, at PromoExcess per extra term.
	PromoThreshold int
	PromoExcess    float64
}

// DefaultWeights returns the production scoring constants.
func DefaultWeights() Weights {
	return Weights{
		StrongPenalty:    15,
		UntrustedBase:    8,
		UntrustedPerTerm: 4,
		TrustedBonus:     8,
		PhraseBonus:      5,
		PhraseLeadBonus:  6,
		PhraseNearBonus:  3,
		NearWindow:       15,
		WordBonus:        1,
		ShortLen:         48,
		ShortBonus:       3,
		MediumLen:        64,
		MediumBonus:      1,
		LongLen:          96,
		LongPenalty:      4,
		HugeLen:          128,
		HugePenalty:      8,
		PromoThreshold:   2,
		PromoExcess:      3,
	}
}

// DurationBounds limits eligible candidate durations in seconds. A zero bound
// is treated as unset.
type DurationBounds struct {
	Min int
	Max int
}

// Scored pairs a candidate with its score.
type Scored struct {
	Candidate engine.Candidate
	Score     float64
}

// Scorer assigns relevance/quality scores to candidates. Construct with
// NewScorer; the scorer is immutable and safe for concurrent use.
type Scorer struct {
	vocab   Vocabulary
	weights Weights
}

func NewScorer(vocab Vocabulary, weights Weights) *Scorer {
	return &Scorer{vocab: lowercaseVocabulary(vocab), weights: weights}
}

func lowercaseVocabulary(v Vocabulary) Vocabulary {
	return Vocabulary{
		TrustedArtists:    lowercaseAll(v.TrustedArtists),
		UntrustedKeywords: lowercaseAll(v.UntrustedKeywords),
		StrongPenalties:   lowercaseAll(v.StrongPenalties),
		PromoTerms:        lowercaseAll(v.PromoTerms),
	}
}

func lowercaseAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}

// Score returns the candidate's score and whether it is eligible for ranking
// at all. ok=false means excluded: the candidate has no title, or its known
// duration falls outside bounds. Unknown durations are never excluded.
// The result depends only on the arguments.
func (s *Scorer) Score(c engine.Candidate, target string, bounds DurationBounds) (float64, bool) {
	title := strings.ToLower(strings.TrimSpace(c.Title))
	if title == "" {
		return 0, false
	}

	if c.Duration != nil {
		d := *c.Duration
		if (bounds.Min > 0 && d < float64(bounds.Min)) ||
			(bounds.Max > 0 && d > float64(bounds.Max)) {
			return 0, false
		}
	}

	w := s.weights
	score := 0.0

	for _, bad := range s.vocab.StrongPenalties {
		if strings.Contains(title, bad) {
			score -= w.StrongPenalty
		}
	}

	untrusted := countMatches(title, s.vocab.UntrustedKeywords)
	if untrusted > 0 {
		score -= w.UntrustedBase + float64(untrusted)*w.UntrustedPerTerm
	}

	for _, artist := range s.vocab.TrustedArtists {
		if strings.Contains(title, artist) {
			score += w.TrustedBonus
			break
		}
	}

	targetLower := strings.ToLower(strings.TrimSpace(target))
	if targetLower != "" {
		if idx := strings.Index(title, targetLower); idx >= 0 {
			score += w.PhraseBonus
			switch {
			case idx == 0:
				score += w.PhraseLeadBonus
			case utf8.RuneCountInString(title[:idx]) <= w.NearWindow:
				score += w.PhraseNearBonus
			}
		}
	}

	for _, word := range strings.Fields(targetLower) {
		if utf8.RuneCountInString(word) > 2 && strings.Contains(title, word) {
			score += w.WordBonus
		}
	}

	switch n := utf8.RuneCountInString(title); {
	case n <= w.ShortLen:
		score += w.ShortBonus
	case n <= w.MediumLen:
		score += w.MediumBonus
	case n > w.HugeLen:
		score -= w.HugePenalty
	case n > w.LongLen:
		score -= w.LongPenalty
	}

	if c.ViewCount > 0 {
		score += math.Log10(float64(c.ViewCount) + 1)
	}

	if promo := countMatches(title, s.vocab.PromoTerms); promo > w.PromoThreshold {
		score -= float64(promo-w.PromoThreshold) * w.PromoExcess
	}

	return score, true
}

func countMatches(title string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(title, term) {
			n++
		}
	}
	return n
}

// Rank scores all candidates against target, drops excluded ones, and sorts
// the rest by score descending. Ties keep the original search order.
func (s *Scorer) Rank(candidates []engine.Candidate, target string, bounds DurationBounds) []Scored {
	ranked := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if score, ok := s.Score(c, target, bounds); ok {
			ranked = append(ranked, Scored{Candidate: c, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
