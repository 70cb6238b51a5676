package generator

import (
	"fmt"
	"regexp"
	"strings"
)

// Prompt builds the instruction sent for topic. maxWords is repeated at the
// end because models tend to ignore a limit stated only once.
func Prompt(topic string, maxWords int) string {
	return fmt.Sprintf(`Generate a high-quality blog post for the following topic.

Requirements:
- Maximum length: %[2]d words
- Engaging and well-structured, with proper headings
- Clean HTML using <h2> and <h3> headings, <p> paragraphs and <ul>/<li> lists
- Start with a brief introduction and end with a short conclusion
- Keep paragraphs concise

Topic: %[1]s

Important: the response MUST NOT exceed %[2]d words. Return only the HTML.`, topic, maxWords)
}

var (
	fencePattern  = regexp.MustCompile("```(?:html|HTML)?")
	strongPattern = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	emPattern     = regexp.MustCompile(`\*([^*\n]+?)\*`)
)

// Clean turns a model answer into editor-ready HTML: code fences are
// removed, **bold** becomes <strong> and *italic* becomes <em>.
func Clean(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = strongPattern.ReplaceAllString(text, "<strong>$1</strong>")
	text = emPattern.ReplaceAllString(text, "<em>$1</em>")
	return strings.TrimSpace(text)
}
