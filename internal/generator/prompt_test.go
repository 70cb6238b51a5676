package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced html", "```html\n<p>x</p>\n```", "<p>x</p>"},
		{"bare fence", "```\n<p>x</p>```", "<p>x</p>"},
		{"bold", "<p>**big** deal</p>", "<p><strong>big</strong> deal</p>"},
		{"italic", "<p>an *aside*</p>", "<p>an <em>aside</em></p>"},
		{"both", "**a** and *b*", "<strong>a</strong> and <em>b</em>"},
		{"untouched", "  <h2>Title</h2>  ", "<h2>Title</h2>"},
		{"lone star", "5 * 3", "5 * 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("Street food in Bangkok", 600)
	assert.Contains(t, p, "Topic: Street food in Bangkok")
	assert.Contains(t, p, "Maximum length: 600 words")
	assert.Contains(t, p, "MUST NOT exceed 600 words")
	assert.Contains(t, p, "<h2>")
}
