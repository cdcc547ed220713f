package security

import (
	"testing"
)

func TestTextSanitizer_RemovesScriptTags(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize(`休日の風景<script>alert("xss")</script>`)

	want := "休日の風景"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestTextSanitizer_RemovesAllMarkup(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "山の写真コレクション", "山の写真コレクション"},
		{"太字タグを除去", "<strong>重要</strong>なメモ", "重要なメモ"},
		{"imgタグを除去", `before<img src="https://evil.example/a.png" onerror="alert(1)">after`, "beforeafter"},
		{"aタグはテキストのみ残す", `<a href="https://example.com">リンク</a>`, "リンク"},
		{"前後の空白を除去", "  トリミング  ", "トリミング"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := `<p>説明文<script>alert(1)</script></p>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize is not idempotent: once=%q twice=%q", once, twice)
	}
}
