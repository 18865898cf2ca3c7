package postprocess_test

import (
	"testing"

	"github.com/opentranslate/mdtran/internal/postprocess"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Просто переклад.",
			want: "Просто переклад.",
		},
		{
			name: "closed think block",
			in:   "<think>let me reason about this</think>Готовий переклад.",
			want: "Готовий переклад.",
		},
		{
			name: "unclosed reasoning block",
			in:   "Переклад.\n<reasoning>and then it trailed off",
			want: "Переклад.",
		},
		{
			name: "here is the translation echo",
			in:   "Here is the translation: Переклад.",
			want: "Переклад.",
		},
		{
			name: "refined translation echo",
			in:   "The refined translation: Краще.",
			want: "Краще.",
		},
		{
			name: "outer double quotes",
			in:   `"Цитований переклад."`,
			want: "Цитований переклад.",
		},
		{
			name: "guillemets",
			in:   "«Переклад»",
			want: "Переклад",
		},
		{
			name: "interior quotes kept",
			in:   `Він сказав "привіт" і пішов.`,
			want: `Він сказав "привіт" і пішов.`,
		},
		{
			name: "whitespace trimmed",
			in:   "  Переклад.  \n",
			want: "Переклад.",
		},
		{
			name: "markdown heading preserved",
			in:   "# Заголовок",
			want: "# Заголовок",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postprocess.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
