package htmltext

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"paragraphs", "<p>one</p><p>two</p>", "one two"},
		{"nested", "<h2>Title</h2><p>Some <strong>bold</strong> text</p>", "Title Some bold text"},
		{"entities", "<p>Fish &amp; chips</p>", "Fish & chips"},
		{"script skipped", "<p>a</p><script>var x = 1;</script><p>b</p>", "a b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(strings.Fields(Text(tt.in)), " ")
			if got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("<p>one two</p><ul><li>three</li></ul>"); got != 3 {
		t.Errorf("WordCount() = %d, want 3", got)
	}
	if got := WordCount("<br><br>"); got != 0 {
		t.Errorf("WordCount() = %d, want 0", got)
	}
}

func TestReadTime(t *testing.T) {
	words := func(n int) string { return "<p>" + strings.Repeat("word ", n) + "</p>" }

	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{150, 1},
		{200, 1},
		{201, 2},
		{399, 2},
		{400, 2},
		{401, 3},
		{1000, 5},
	}
	for _, tt := range tests {
		if got := ReadTime(words(tt.words)); got != tt.want {
			t.Errorf("ReadTime(%d words) = %d, want %d", tt.words, got, tt.want)
		}
	}
}
