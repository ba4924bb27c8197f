package text

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	editLinkRe = regexp.MustCompile(`(?mi)^\[edit[^\]]*\]\([^\)]+\)\s*$`)
	tocRe      = regexp.MustCompile(`(?mi)^#{1,3}\s+(?:table of )?contents?\s*\n(?:\s*[-*]\s*\[.*?\]\(#.*?\)\s*\n)*`)
	installRe  = regexp.MustCompile(`(?mi)^\s*(npm|pnpm|yarn|pip|cargo|brew|apt|go)\s+(install|add|get|i)\b`)
	linkLineRe = regexp.MustCompile(`^\s*[-*]?\s*\[.*?\]\(.*?\)\s*$`)
)

// navigation and call-to-action remnants left behind by web importers
var boilerplatePhrases = []string{
	"click here",
	"skip to content",
	"skip to main content",
	"back to top",
	"read more",
	"share this",
	"subscribe to",
	"sign up for",
	"accept cookies",
	"this site uses cookies",
}

var legalPhrases = []string{
	"©",
	"all rights reserved",
	"terms of service",
	"privacy policy",
}

// CleanMarkdownNoise removes documentation boilerplate (edit links, generated
// tables of contents) that imported markdown tends to carry.
func CleanMarkdownNoise(text string) string {
	text = editLinkRe.ReplaceAllString(text, "")
	text = tocRe.ReplaceAllString(text, "")
	return text
}

// IsBoilerplate reports whether a sentence carries no lesson value.
// Heuristics stay conservative: a borderline sentence is kept.
func IsBoilerplate(sentence string) bool {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return true
	}

	if !strings.ContainsFunc(trimmed, unicode.IsLetter) {
		return true
	}

	lines := filterNonEmpty(strings.Split(trimmed, "\n"))
	if len(lines) > 0 && len(lines) <= 3 {
		allInstall := true
		for _, line := range lines {
			if !installRe.MatchString(line) {
				allInstall = false
				break
			}
		}
		if allInstall {
			return true
		}
	}

	if len(lines) > 0 {
		linkCount := 0
		for _, line := range lines {
			if linkLineRe.MatchString(line) {
				linkCount++
			}
		}
		if float64(linkCount)/float64(len(lines)) > 0.7 {
			return true
		}
	}

	lower := strings.ToLower(trimmed)
	if len(trimmed) < 200 {
		for _, p := range legalPhrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}
	if len(trimmed) < 80 {
		for _, p := range boilerplatePhrases {
			if strings.Contains(lower, p) {
				return true
			}
		}
	}

	return false
}

func filterNonEmpty(lines []string) []string {
	var result []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			result = append(result, l)
		}
	}
	return result
}
