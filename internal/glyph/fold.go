package glyph

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Enclosed forms that NFKC would collapse into bare digits or letters. They
// are label glyphs in their own right, so folding leaves them intact.
var enclosedRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2460, Hi: 0x2473, Stride: 1}, // ① .. ⑳
		{Lo: 0x24b6, Hi: 0x24ff, Stride: 1}, // Ⓐ .. ⓿
		{Lo: 0x2776, Hi: 0x2793, Stride: 1}, // ❶ .. ➓
		{Lo: 0x3260, Hi: 0x327f, Stride: 1}, // ㉠ .. ㉿
	},
}

// folded is a folded rendition of a string that remembers, for every folded
// rune, which rune of the original produced it.
type folded struct {
	orig  []rune
	runes []rune
	owner []int
}

func foldString(s string) folded {
	f := folded{orig: []rune(s)}
	for i, r := range f.orig {
		for _, fr := range foldRune(r) {
			f.runes = append(f.runes, fr)
			f.owner = append(f.owner, i)
		}
	}
	return f
}

func foldRune(r rune) []rune {
	if unicode.Is(enclosedRanges, r) {
		return []rune{r}
	}
	s := width.Fold.String(string(r))
	return []rune(norm.NFKC.String(s))
}

// rest returns the original text that follows the first n folded runes.
func (f folded) rest(n int) string {
	if n >= len(f.runes) {
		return ""
	}
	if n <= 0 {
		return string(f.orig)
	}
	// Never split an original rune: resume after the owner of the last
	// consumed folded rune.
	return string(f.orig[f.owner[n-1]+1:])
}

func (f folded) String() string {
	return string(f.runes)
}

// Fold normalizes compatibility and width variants (full-width digits,
// parenthesized forms) while keeping circled glyphs distinct.
func Fold(s string) string {
	return foldString(s).String()
}
