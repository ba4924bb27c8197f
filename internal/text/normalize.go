package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMinSentenceLength is the shortest sentence (in characters) kept by
// FilterSentences when no explicit minimum is given.
const DefaultMinSentenceLength = 15

type Origin string

const (
	OriginText     Origin = "text"
	OriginURL      Origin = "url"
	OriginTopic    Origin = "topic"
	OriginDocument Origin = "document"
	OriginAudio    Origin = "audio"
	OriginVideo    Origin = "video"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginText, OriginURL, OriginTopic, OriginDocument, OriginAudio, OriginVideo:
		return true
	}
	return false
}

// RawImport is imported study material as handed over by an importer.
type RawImport struct {
	Origin          Origin `json:"origin"`
	Content         string `json:"content"`
	TitleHint       string `json:"title_hint,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	SizeBytes       int64  `json:"size_bytes,omitempty"`
}

// Sentence is a unit of cleaned text. Start and End are byte offsets into the
// cleaned text the sentence was split from; Position is its ordinal before
// filtering.
type Sentence struct {
	Text           string `json:"text"`
	Start          int    `json:"start"`
	End            int    `json:"end"`
	Position       int    `json:"position"`
	ParagraphStart bool   `json:"paragraph_start"`
}

var (
	htmlMarkupRe = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|span|article|section|h[1-6]|ul|ol|li|table|a|script|style)\b[^>]*>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe   = regexp.MustCompile(`[ \t\f\v]+`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	headingRe    = regexp.MustCompile(`^\s*(#{1,6}\s|[-*+]\s|\d+[.)]\s)`)
)

var invisibleReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
	"\ufffd", "",
)

// Clean normalizes raw imported text: markup is stripped, line breaks and
// whitespace are normalized. It never fails; empty input yields "".
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	text := raw
	if htmlMarkupRe.MatchString(text) {
		text = StripHTML(text)
	}
	text = invisibleReplacer.Replace(text)
	text = CleanMarkdownNoise(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// StripHTML extracts readable text from an HTML document. Block elements end
// up separated by blank lines so paragraph structure survives.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return tagRe.ReplaceAllString(html, " ")
	}

	doc.Find("script, style, noscript, nav, footer, aside, form, iframe, svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, section, article, blockquote, pre, tr, header").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	return doc.Text()
}

var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "etc": true, "vs": true, "cf": true, "al": true,
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true, "sr": true, "jr": true,
	"st": true, "no": true, "fig": true, "approx": true, "ca": true, "inc": true, "ltd": true,
}

// SplitSentences segments cleaned text on sentence-ending punctuation, blank
// lines and heading/list line ends. It keeps no state between calls.
func SplitSentences(cleaned string) []Sentence {
	var out []Sentence
	n := len(cleaned)
	start := 0
	lineStart := 0
	paragraphStart := true

	emit := func(from, to int) {
		for from < to && isSpace(cleaned[from]) {
			from++
		}
		for to > from && isSpace(cleaned[to-1]) {
			to--
		}
		if from >= to {
			return
		}
		out = append(out, Sentence{
			Text:           cleaned[from:to],
			Start:          from,
			End:            to,
			Position:       len(out),
			ParagraphStart: paragraphStart,
		})
		paragraphStart = false
	}

	for i := 0; i < n; i++ {
		c := cleaned[i]
		switch c {
		case '\n':
			if i+1 < n && cleaned[i+1] == '\n' {
				emit(start, i)
				start = i
				paragraphStart = true
			} else if headingRe.MatchString(cleaned[lineStart:i]) {
				emit(start, i)
				start = i
			}
			lineStart = i + 1
		case '.', '!', '?':
			j := i + 1
			for j < n && strings.IndexByte(`"')]`, cleaned[j]) >= 0 {
				j++
			}
			for j < n && (strings.HasPrefix(cleaned[j:], "\u201d") || strings.HasPrefix(cleaned[j:], "\u2019")) {
				j += len("\u201d")
			}
			if j < n && !isSpace(cleaned[j]) {
				continue
			}
			if c == '.' && isAbbreviation(cleaned[:i]) {
				continue
			}
			k := j
			for k < n && isSpace(cleaned[k]) {
				k++
			}
			if k < n {
				r, _ := utf8.DecodeRuneInString(cleaned[k:])
				if unicode.IsLower(r) {
					continue
				}
			}
			emit(start, j)
			start = j
			i = j - 1
		}
	}
	emit(start, n)

	return out
}

// isAbbreviation reports whether the text before a period ends with a known
// abbreviation or a single-letter initial.
func isAbbreviation(before string) bool {
	ws := len(before)
	for ws > 0 {
		r, size := utf8.DecodeLastRuneInString(before[:ws])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		ws -= size
	}
	word := before[ws:]
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return abbreviations[strings.ToLower(strings.TrimSuffix(word, "."))]
}

// FilterSentences drops sentences shorter than minLen characters and
// boilerplate. Order and Position are preserved.
func FilterSentences(sentences []Sentence, minLen int) []Sentence {
	if minLen <= 0 {
		minLen = DefaultMinSentenceLength
	}

	filtered := make([]Sentence, 0, len(sentences))
	pendingParagraph := false
	for _, s := range sentences {
		if s.ParagraphStart {
			pendingParagraph = true
		}
		if utf8.RuneCountInString(s.Text) < minLen || IsBoilerplate(s.Text) {
			continue
		}
		if pendingParagraph {
			s.ParagraphStart = true
			pendingParagraph = false
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}
