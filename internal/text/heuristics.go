package text

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Complexity string

const (
	Beginner     Complexity = "beginner"
	Intermediate Complexity = "intermediate"
	Advanced     Complexity = "advanced"
)

// Rank orders complexity levels; unknown values rank below beginner.
func (c Complexity) Rank() int {
	switch c {
	case Beginner:
		return 1
	case Intermediate:
		return 2
	case Advanced:
		return 3
	}
	return 0
}

func (c Complexity) Valid() bool { return c.Rank() > 0 }

// Scorer rates how demanding a piece of text is to read.
type Scorer interface {
	ScoreComplexity(text string) Complexity
}

// Labeler derives a short topic label for a group of sentences.
type Labeler interface {
	DeriveTopic(sentences []Sentence) string
}

// Summarizer picks a provisional extractive summary for a group of sentences.
type Summarizer interface {
	Summarize(sentences []Sentence) string
}

const (
	maxTopicTerms     = 3
	maxTopicFallback  = 60
	maxSummaryLength  = 240
	longWordMinLetter = 7
)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all also am an and any are as at be because
		been before being below between both but by can could did do does doing down during each few for from
		further had has have having he her here hers herself him himself his how however i if in into is it its
		itself just let me more most my myself no nor not now of off on once only or other our ours ourselves
		out over own same she should so some such than that the their theirs them themselves then there these
		they this those through to too under until up very was we were what when where which while who whom
		why will with would you your yours yourself yourselves one two many much may might must shall also
		called use used using like often well new make makes made way ways thing things get gets via each every
		first second third another even still yet since within without across`) {
		stopwords[w] = true
	}
}

// words splits text into lower-cased letter/digit runs.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// stem applies a light suffix strip so "plants" and "plant" share a key.
func stem(w string) string {
	w = strings.TrimSuffix(w, "'s")
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "es") && !strings.HasSuffix(w, "ses"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

type term struct {
	key     string
	surface string
}

// contentTerms returns the non-stopword terms of s in order of appearance.
func contentTerms(s string) []term {
	var out []term
	for _, w := range words(s) {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) < 3 || stopwords[w] {
			continue
		}
		if strings.IndexFunc(w, unicode.IsLetter) < 0 {
			continue
		}
		out = append(out, term{key: stem(w), surface: w})
	}
	return out
}

func termSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range contentTerms(s) {
		set[t.key] = true
	}
	return set
}

// Heuristics is the default lexical Scorer, Labeler and Summarizer.
type Heuristics struct{}

// ScoreComplexity combines average sentence length, long-word ratio and average
// word length into one of three levels.
func (Heuristics) ScoreComplexity(text string) Complexity {
	ws := words(text)
	if len(ws) == 0 {
		return Beginner
	}

	sentenceCount := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	letters, long := 0, 0
	for _, w := range ws {
		n := utf8.RuneCountInString(w)
		letters += n
		if n >= longWordMinLetter {
			long++
		}
	}

	avgSentence := float64(len(ws)) / float64(sentenceCount)
	longRatio := float64(long) / float64(len(ws))
	avgWord := float64(letters) / float64(len(ws))

	score := 0
	if avgSentence > 14 {
		score++
	}
	if avgSentence > 22 {
		score++
	}
	if longRatio > 0.2 {
		score++
	}
	if longRatio > 0.3 {
		score++
	}
	if avgWord > 5.5 {
		score++
	}

	switch {
	case score <= 1:
		return Beginner
	case score <= 3:
		return Intermediate
	default:
		return Advanced
	}
}

// DeriveTopic returns the most frequent content terms, ties broken by first
// occurrence. Falls back to the first sentence when no content terms exist.
func (Heuristics) DeriveTopic(sentences []Sentence) string {
	type ranked struct {
		surface string
		count   int
		first   int
	}
	byKey := map[string]*ranked{}
	order := 0
	for _, s := range sentences {
		for _, t := range contentTerms(s.Text) {
			if r, ok := byKey[t.key]; ok {
				r.count++
				continue
			}
			byKey[t.key] = &ranked{surface: t.surface, count: 1, first: order}
			order++
		}
	}

	if len(byKey) == 0 {
		if len(sentences) == 0 {
			return ""
		}
		return truncate(sentences[0].Text, maxTopicFallback)
	}

	all := make([]*ranked, 0, len(byKey))
	for _, r := range byKey {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].first < all[j].first
	})

	n := min(maxTopicTerms, len(all))
	labels := make([]string, 0, n)
	for _, r := range all[:n] {
		labels = append(labels, titleCase(r.surface))
	}
	return strings.Join(labels, ", ")
}

// Summarize returns the sentence most central to the group's vocabulary.
func (Heuristics) Summarize(sentences []Sentence) string {
	if len(sentences) == 0 {
		return ""
	}

	tf := map[string]int{}
	for _, s := range sentences {
		for _, t := range contentTerms(s.Text) {
			tf[t.key]++
		}
	}

	best, bestScore := 0, -1.0
	for i, s := range sentences {
		set := termSet(s.Text)
		if len(set) == 0 {
			continue
		}
		sum := 0
		for k := range set {
			sum += tf[k]
		}
		score := float64(sum) / math.Sqrt(float64(len(set)))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return truncate(sentences[best].Text, maxSummaryLength)
}

func titleCase(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

// truncate cuts s to at most limit runes on a word boundary.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}
