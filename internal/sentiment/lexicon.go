package sentiment

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var defaultPositiveWords = []string{
	"good", "great", "excellent", "wonderful", "perfect", "happy", "nice", "awesome",
	"fantastic", "amazing",
}

var defaultNegativeWords = []string{
	"bad", "poor", "terrible", "horrible", "awful", "disappointing", "unhappy", "sad",
	"angry", "frustrating",
}

// negations arm the negation flag for the next sentiment word
var negations = toSet([]string{
	"not", "no", "never", "none", "neither", "nor", "cannot",
})

// intensifiers scale the next sentiment word up
var intensifiers = map[string]float64{
	"very":          1.5,
	"extremely":     2.0,
	"absolutely":    2.0,
	"completely":    1.8,
	"totally":       1.8,
	"utterly":       1.8,
	"highly":        1.5,
	"really":        1.3,
	"exceptionally": 1.7,
	"remarkably":    1.6,
	"particularly":  1.4,
}

// diminishers scale the next sentiment word down
var diminishers = map[string]float64{
	"slightly":   0.8,
	"somewhat":   0.7,
	"partially":  0.6,
	"moderately": 0.7,
	"barely":     0.5,
	"hardly":     0.5,
	"scarcely":   0.5,
	"marginally": 0.6,
}

// stopWords are excluded from keyword extraction
var stopWords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any", "are",
	"as", "at", "be", "because", "been", "before", "being", "below", "between", "both", "but",
	"by", "can", "could", "did", "do", "does", "doing", "down", "during", "each", "few", "for",
	"from", "further", "had", "has", "have", "having", "he", "her", "here", "hers", "herself",
	"him", "himself", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "just",
	"me", "more", "most", "my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once",
	"only", "or", "other", "our", "ours", "ourselves", "out", "over", "own", "same", "she",
	"should", "so", "some", "such", "than", "that", "the", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when", "where", "which",
	"while", "who", "whom", "why", "will", "with", "would", "you", "your", "yours", "yourself",
	"yourselves",
})

// Lexicon holds the positive and negative word sets. It is never modified
// after construction.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// DefaultLexicon returns a lexicon built from the built-in word lists
func DefaultLexicon() *Lexicon {
	return NewLexicon(nil, nil)
}

// NewLexicon builds a lexicon from the given word lists. Words are trimmed and
// lower-cased. An empty list is replaced by the built-in default for that
// polarity, so neither set is ever empty.
func NewLexicon(positive, negative []string) *Lexicon {
	pos := normalizeWords(positive)
	if len(pos) == 0 {
		pos = normalizeWords(defaultPositiveWords)
	}
	neg := normalizeWords(negative)
	if len(neg) == 0 {
		neg = normalizeWords(defaultNegativeWords)
	}
	return &Lexicon{positive: pos, negative: neg}
}

// LoadLexicon reads newline-delimited positive and negative word files.
// It always returns a usable lexicon. A non-nil error lists the sources that
// were missing, unreadable or empty and fell back to the defaults; callers
// decide whether to log it.
func LoadLexicon(positivePath, negativePath string) (*Lexicon, error) {
	var errs []error

	positive, err := readWordList(positivePath)
	if err != nil {
		errs = append(errs, fmt.Errorf("positive word list: %w", err))
	}
	negative, err := readWordList(negativePath)
	if err != nil {
		errs = append(errs, fmt.Errorf("negative word list: %w", err))
	}

	return NewLexicon(positive, negative), errors.Join(errs...)
}

// ErrEmptyWordList is reported when a word list source holds no words
var ErrEmptyWordList = errors.New("word list is empty")

// readWordList reads one word per line, skipping blank lines and # comments
func readWordList(path string) ([]string, error) {
	if path == "" {
		return nil, ErrEmptyWordList
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyWordList)
	}

	return words, nil
}

// IsPositive reports whether word is in the positive set
func (l *Lexicon) IsPositive(word string) bool {
	_, ok := l.positive[word]
	return ok
}

// IsNegative reports whether word is in the negative set
func (l *Lexicon) IsNegative(word string) bool {
	_, ok := l.negative[word]
	return ok
}

// Size returns the number of positive and negative words
func (l *Lexicon) Size() (positive, negative int) {
	return len(l.positive), len(l.negative)
}

func normalizeWords(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
