// Package htmltext measures the readable text inside rich-text HTML: the
// visible words, their count, and the reading time derived from it.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// WordsPerMinute is the reading speed behind ReadTime.
const WordsPerMinute = 200

// Text returns the text content of an HTML fragment with tags removed.
// Adjacent text nodes are separated by a space so "<p>a</p><p>b</p>" counts
// as two words. Script and style bodies are skipped.
func Text(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF, or malformed input: either way keep what was read.
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if isRawText(z) {
				skip++
			}
		case html.EndTagToken:
			if isRawText(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isRawText(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// WordCount counts whitespace-separated words in the text of fragment.
func WordCount(fragment string) int {
	return len(strings.Fields(Text(fragment)))
}

// ReadTime estimates reading minutes at WordsPerMinute, rounded up and never
// less than 1.
func ReadTime(fragment string) int {
	minutes := (WordCount(fragment) + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
