package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

const (
	// Bare ten-digit numbers are assumed to be Indian.
	defaultPhoneRegion = "IN"
	defaultCallingCode = "+91"

	nameScanLines    = 30
	contactScanLines = 50
	maxNameLength    = 50
	minNameWords     = 2
	maxNameWords     = 4

	weightEmail     = 0.4
	weightPhone     = 0.25
	weightName      = 0.15
	weightLinkedIn  = 0.1
	weightGitHub    = 0.05
	weightTextLayer = 0.05
)

const emailChars = `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`

var (
	mailtoPatterns = []*regexp.Regexp{
		regexp.MustCompile(`mailto:\s*(` + emailChars + `)`),
		regexp.MustCompile(`href=["']mailto:(` + emailChars + `)["']`),
	}
	keywordEmailPattern = regexp.MustCompile(`(?:email|e-mail|mail)[\s:]*.*?(?:href=["'])?(?:mailto:)?(` + emailChars + `)`)
	emailPattern        = regexp.MustCompile(`\b` + emailChars + `\b`)

	phoneSeparators = regexp.MustCompile(`[\s\-().]`)
	digitRun        = regexp.MustCompile(`\d{7,15}`)
	leadingDigit    = regexp.MustCompile(`^\+?\d`)

	linkedInHrefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`href=["'](https?://(?:www\.)?linkedin\.com/in/[a-zA-Z0-9\-]+)["']`),
		regexp.MustCompile(`href=["'](linkedin\.com/in/[a-zA-Z0-9\-]+)["']`),
	}
	linkedInKeywordPattern = regexp.MustCompile(`(?:linkedin|linked\s*in)[\s:]*.*?(?:href=["'])?(https?://(?:www\.)?linkedin\.com/in/[a-zA-Z0-9\-]+)`)
	linkedInUserPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/in/([a-zA-Z0-9\-]+)`),
		regexp.MustCompile(`linkedin\.com/in/([a-zA-Z0-9\-]+)`),
		regexp.MustCompile(`www\.linkedin\.com/in/([a-zA-Z0-9\-]+)`),
		regexp.MustCompile(`linkedin\.com/profile/view\?id=([a-zA-Z0-9\-]+)`),
	}

	gitHubHrefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`href=["'](https?://(?:www\.)?github\.com/[A-Za-z0-9-]{1,39})["']`),
		regexp.MustCompile(`href=["'](github\.com/[A-Za-z0-9-]{1,39})["']`),
	}
	gitHubKeywordPattern = regexp.MustCompile(`(?:github|git\s*hub)[\s:]*.*?(?:href=["'])?(https?://(?:www\.)?github\.com/[A-Za-z0-9-]{1,39})`)
	gitHubUserPatterns   = []*regexp.Regexp{
		regexp.MustCompile(`https?://(?:www\.)?github\.com/([A-Za-z0-9-]{1,39})`),
		regexp.MustCompile(`github\.com/([A-Za-z0-9-]{1,39})`),
		regexp.MustCompile(`www\.github\.com/([A-Za-z0-9-]{1,39})`),
	}

	contactKeywords = []string{"email", "phone", "contact", "mobile", "tel"}
)

// ExtractEmail returns the first email address, lower-cased. Explicit
// mailto links win over keyword-labelled addresses, which win over any
// address in the text.
func ExtractEmail(text string) string {
	for _, re := range mailtoPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1])
		}
	}
	if m := keywordEmailPattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(emailPattern.FindString(text))
}

// NormalizePhone returns the first valid phone number in E.164 form.
func NormalizePhone(text string) string {
	if n := validPhone(text); n != "" {
		return n
	}

	cleaned := phoneSeparators.ReplaceAllString(text, "")
	for _, digits := range digitRun.FindAllString(cleaned, -1) {
		candidate := digits
		switch {
		case len(digits) == 10:
			candidate = defaultCallingCode + digits
		case len(digits) > 10:
			candidate = "+" + digits
		}
		if n := validPhone(candidate); n != "" {
			return n
		}
	}
	return ""
}

func validPhone(input string) string {
	num, err := phonenumbers.Parse(input, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// ExtractLinkedIn returns a LinkedIn profile URL.
func ExtractLinkedIn(text string) string {
	for _, re := range linkedInHrefPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if !hasHTTPPrefix(m[1]) {
				return "https://www." + m[1]
			}
			return m[1]
		}
	}
	if m := linkedInKeywordPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, re := range linkedInUserPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return "https://www.linkedin.com/in/" + m[1]
		}
	}
	return ""
}

// ExtractGitHub returns a GitHub profile URL.
func ExtractGitHub(text string) string {
	for _, re := range gitHubHrefPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if !hasHTTPPrefix(m[1]) {
				return "https://" + m[1]
			}
			return m[1]
		}
	}
	if m := gitHubKeywordPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, re := range gitHubUserPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return "https://github.com/" + m[1]
		}
	}
	return ""
}

func hasHTTPPrefix(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "http")
}

// GuessName looks for a line of two to four capitalised words near the top
// of the text, or just above a contact line.
func GuessName(text string) string {
	lines := strings.Split(text, "\n")

	candidates := make([]string, 0, nameScanLines)
	candidates = append(candidates, lines[:min(nameScanLines, len(lines))]...)
	for i := 1; i < min(contactScanLines, len(lines)); i++ {
		lower := strings.ToLower(lines[i])
		for _, k := range contactKeywords {
			if strings.Contains(lower, k) {
				candidates = append(candidates, lines[i-1])
				break
			}
		}
	}

	for _, raw := range candidates {
		line := strings.TrimSpace(raw)
		if line == "" || strings.Contains(line, "@") ||
			utf8.RuneCountInString(line) > maxNameLength || leadingDigit.MatchString(line) {
			continue
		}
		words := strings.Fields(line)
		if len(words) < minNameWords || len(words) > maxNameWords {
			continue
		}
		if allCapitalised(words) {
			return line
		}
	}
	return ""
}

func allCapitalised(words []string) bool {
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// ScoreConfidence weights the extracted fields. A result read from the
// text layer scores slightly higher than one from OCR.
func ScoreConfidence(r domain.ExtractionResult) float64 {
	score := 0.0
	for _, f := range []struct {
		value  string
		weight float64
	}{
		{r.Email, weightEmail},
		{r.Phone, weightPhone},
		{r.Name, weightName},
		{r.LinkedIn, weightLinkedIn},
		{r.GitHub, weightGitHub},
	} {
		if strings.TrimSpace(f.value) != "" {
			score += f.weight
		}
	}
	if !r.OCRUsed {
		score += weightTextLayer
	}
	return min(score, 1.0)
}
