// Package sentiment scores free-text review comments against a word lexicon
// and extracts their most frequent keywords.
package sentiment

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Label classifies a sentiment score
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

const (
	// PositiveThreshold and NegativeThreshold bound the neutral band
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2

	// negationFactor flips a negated contribution and halves it
	negationFactor = -0.5

	// DefaultKeywordLimit is used when ExtractKeywords gets a non-positive limit
	DefaultKeywordLimit = 10
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	disallowedRune = regexp.MustCompile(`[^\p{L}\p{N}\s'.,!?]`)
)

// AnnotatedWord records how a single word contributed to the score
type AnnotatedWord struct {
	Word         string  `json:"word"`
	Contribution float64 `json:"contribution"`
	Negated      bool    `json:"negated"`
	Intensifier  float64 `json:"intensifier"`
}

// Result is the outcome of one AnalyzeSentiment call
type Result struct {
	Score float64         `json:"score"`
	Label Label           `json:"label"`
	Words []AnnotatedWord `json:"words"`
}

// Keyword is a word and the number of times it occurred
type Keyword struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Scorer computes lexicon-based sentiment. A Scorer is safe for concurrent use.
type Scorer struct {
	lexicon *Lexicon
}

// New creates a Scorer over lex. A nil lexicon selects the built-in defaults.
func New(lex *Lexicon) *Scorer {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Scorer{lexicon: lex}
}

// Lexicon returns the scorer's lexicon
func (s *Scorer) Lexicon() *Lexicon {
	return s.lexicon
}

// AnalyzeSentiment scores text. The score is the sum of word contributions
// divided by the number of tokens, clamped to [-1, 1].
func (s *Scorer) AnalyzeSentiment(text string) Result {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Result{Score: 0, Label: Neutral, Words: []AnnotatedWord{}}
	}

	st := initialState()
	words := make([]AnnotatedWord, 0, len(tokens))
	var total float64
	for _, tok := range tokens {
		var annotated *AnnotatedWord
		st, annotated = s.step(st, tok)
		if annotated != nil {
			words = append(words, *annotated)
			total += annotated.Contribution
		}
	}

	score := clamp(total/float64(len(tokens)), -1, 1)
	return Result{
		Score: score,
		Label: LabelFor(score),
		Words: words,
	}
}

// scanState is carried from one token to the next
type scanState struct {
	negated   bool
	intensity float64
}

func initialState() scanState {
	return scanState{intensity: 1.0}
}

// step applies one token to the running state. Negations and modifiers are
// consumed and yield no annotated word; every other token yields one.
func (s *Scorer) step(st scanState, tok string) (scanState, *AnnotatedWord) {
	if _, ok := negations[tok]; ok {
		st.negated = true
		return st, nil
	}
	if m, ok := intensifiers[tok]; ok {
		st.intensity = m
		return st, nil
	}
	if m, ok := diminishers[tok]; ok {
		st.intensity = m
		return st, nil
	}

	word := &AnnotatedWord{
		Word:        tok,
		Negated:     st.negated,
		Intensifier: st.intensity,
	}

	var base float64
	switch {
	case s.lexicon.IsPositive(tok):
		base = 1
	case s.lexicon.IsNegative(tok):
		base = -1
	default:
		return st, word
	}

	word.Contribution = base * st.intensity
	if st.negated {
		word.Contribution *= negationFactor
		st.negated = false
	}
	st.intensity = 1.0

	return st, word
}

// LabelFor maps a score onto a label
func LabelFor(score float64) Label {
	switch {
	case score > PositiveThreshold:
		return Positive
	case score < NegativeThreshold:
		return Negative
	default:
		return Neutral
	}
}

// ExtractKeywords returns up to limit of the most frequent non-stop-word
// tokens longer than two characters. Ties keep first-occurrence order.
func (s *Scorer) ExtractKeywords(text string, limit int) []Keyword {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range Tokenize(text) {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	keywords := make([]Keyword, 0, len(order))
	for _, w := range order {
		keywords = append(keywords, Keyword{Word: w, Count: counts[w]})
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].Count > keywords[j].Count
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// JoinKeywords renders keywords as the comma-joined form stored with reviews.
// Trailing .,!? is trimmed so the separator stays unambiguous; a keyword that
// trims to an empty or already emitted word is skipped.
func JoinKeywords(keywords []Keyword) string {
	words := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		word := strings.TrimRight(k.Word, ".,!?")
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return strings.Join(words, ",")
}

// Tokenize lower-cases text, removes URLs and disallowed characters and
// splits on whitespace. Letters, digits, apostrophes and .,!? are kept, so
// trailing punctuation stays attached to its word.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = disallowedRune.ReplaceAllString(text, "")
	return strings.Fields(text)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
