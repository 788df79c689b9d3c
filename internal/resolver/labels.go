package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"examsolver/internal/domain"
	"examsolver/internal/glyph"
)

// answerCue matches an explicit "answer is X" statement and captures X.
var answerCue = regexp.MustCompile(`(?i)(?:answer|정답|답)\s*(?:is|은|는|:|：|=)?\s*(?:is\s*)?[:：]?\s*(\S+)`)

// koreanTails are counters and copulas that follow a label in a Korean
// reply, as in "③번입니다".
var koreanTails = []string{"번", "입니다", "이다", "이에요", "예요"}

// sentencePunct is trimmed from both ends of a reply token before matching.
const sentencePunct = `"'“”‘’.,;:!?*`

// ParseLabel extracts the chosen label from a free-text backend reply. It
// returns the canonical label of the matching choice.
//
// An exact match of the whole reply wins, then an explicit answer cue, then
// the first enclosed label token ("(3)", "[B]", "③", "3)"), then a bare label
// leading the reply ("3, because ..."). A bare label elsewhere in prose is
// not an answer.
func ParseLabel(reply string, choices []domain.Choice) (string, bool) {
	s := strings.TrimSpace(glyph.Fold(reply))
	if s == "" || len(choices) == 0 {
		return "", false
	}

	if label, _, ok := lookupToken(s, choices, true); ok {
		return label, true
	}

	if m := answerCue.FindStringSubmatch(s); m != nil {
		if label, _, ok := lookupToken(m[1], choices, false); ok {
			return label, true
		}
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '/'
	})
	var bare string
	for i, f := range fields {
		label, enclosed, ok := lookupToken(f, choices, false)
		if !ok {
			continue
		}
		if enclosed {
			return label, true
		}
		if i == 0 {
			bare = label
		}
	}
	return bare, bare != ""
}

// lookupToken matches one token against the choices. enclosed reports
// whether the token carried label punctuation or a dedicated glyph, which
// makes it a stronger signal than a bare digit or letter. Letter labels match
// case-insensitively only when enclosed or when anyCase is set, so the
// article "a" in prose is not read as choice A.
func lookupToken(tok string, choices []domain.Choice, anyCase bool) (label string, enclosed bool, ok bool) {
	tok = strings.Trim(tok, sentencePunct)
	for _, tail := range koreanTails {
		if i := strings.Index(tok, tail); i > 0 {
			tok = strings.Trim(tok[:i], sentencePunct)
		}
	}
	if tok == "" {
		return "", false, false
	}

	// Printed glyphs first: "③" or "(가)" as they appeared on the page.
	for _, c := range choices {
		if c.Glyph != "" && c.Glyph != c.Label && tok == glyph.Fold(c.Glyph) {
			return c.Label, true, true
		}
	}

	inner, enclosed := unwrap(tok)
	for _, c := range choices {
		if inner == c.Label || ((enclosed || anyCase) && isASCIILetter(inner) && strings.EqualFold(inner, c.Label)) {
			return c.Label, enclosed, true
		}
	}
	return "", false, false
}

func unwrap(tok string) (string, bool) {
	switch {
	case len(tok) >= 3 && tok[0] == '(' && tok[len(tok)-1] == ')':
		return tok[1 : len(tok)-1], true
	case len(tok) >= 3 && tok[0] == '[' && tok[len(tok)-1] == ']':
		return tok[1 : len(tok)-1], true
	case len(tok) >= 2 && tok[len(tok)-1] == ')':
		return tok[:len(tok)-1], true
	}
	return tok, false
}

func isASCIILetter(s string) bool {
	return len(s) == 1 && (s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z')
}
