package chunker

import "unicode"

// EstimateTokens approximates the token count of chunk text: about 1.33
// tokens per whitespace-separated word, and one per CJK character, since
// those scripts are not space delimited.
func EstimateTokens(text string) int {
	words, ideographs := 0, 0
	inWord := false
	for _, r := range text {
		switch {
		case isIdeographic(r):
			ideographs++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	if words == 0 && ideographs == 0 {
		return 0
	}
	return max(int(float64(words)*1.33)+ideographs, 1)
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
