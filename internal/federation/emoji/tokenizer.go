// Package emoji splits text into emoji tokens.
//
// A token is one extended grapheme cluster that renders as an emoji: a lone
// emoji-presentation symbol, a text-default symbol forced to emoji
// presentation with U+FE0F, a zero-width-joiner sequence, a regional-indicator
// flag pair, a keycap sequence or a symbol with a skin-tone modifier. Cluster
// boundaries come from UAX #29 segmentation, which already keeps ZWJ
// sequences and flag pairs together; this package only decides which clusters
// are emoji.
package emoji

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

const (
	// ZWJ joins emoji into a single sequence.
	ZWJ = '\u200d'
	// VS16 requests emoji presentation for the preceding symbol.
	VS16 = '\ufe0f'
	// Keycap is the combining enclosing keycap.
	Keycap = '\u20e3'
)

// Token is one emoji grapheme cluster and its byte range in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

func (t Token) String() string {
	return t.Text
}

// Tokens yields the emoji tokens of text in source order. Non-emoji runs are
// skipped. The sequence holds no state between iterations and can be ranged
// over any number of times.
func Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		rest := text
		offset := 0
		state := -1
		for len(rest) > 0 {
			var cluster string
			cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
			start := offset
			offset += len(cluster)
			if !IsEmoji(cluster) {
				continue
			}
			if !yield(Token{Text: cluster, Start: start, End: offset}) {
				return
			}
		}
	}
}

// Tokenize returns all emoji tokens of text.
func Tokenize(text string) []Token {
	return slices.Collect(Tokens(text))
}

// IsEmoji reports whether a single grapheme cluster is an emoji.
func IsEmoji(cluster string) bool {
	r, size := utf8.DecodeRuneInString(cluster)
	if r == utf8.RuneError {
		return false
	}
	if isRegionalIndicator(r) || unicode.Is(presentation, r) {
		return true
	}
	rest := cluster[size:]
	if isKeycapBase(r) {
		return strings.ContainsRune(rest, Keycap) || strings.ContainsRune(rest, VS16)
	}
	if !unicode.Is(pictographic, r) {
		return false
	}
	return strings.ContainsRune(rest, VS16) || strings.ContainsRune(rest, ZWJ) || strings.ContainsFunc(rest, isSkinTone)
}

func isSkinTone(r rune) bool {
	return r >= 0x1F3FB && r <= 0x1F3FF
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

func isKeycapBase(r rune) bool {
	return r == '#' || r == '*' || (r >= '0' && r <= '9')
}
