package security

import (
	"strings"
	"testing"
)

var _ ContentSanitizerService = NewContentSanitizer()

func TestSanitize_AllowedTagsPass(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"段落", "<p>名作です</p>", "<p>名作です</p>"},
		{"強調", "<strong>必見</strong>", "<strong>必見</strong>"},
		{"斜体", "<em>静かな傑作</em>", "<em>静かな傑作</em>"},
		{"リスト", "<ul><li>一作目</li></ul>", "<ul><li>一作目</li></ul>"},
		{"引用", "<blockquote>名台詞</blockquote>", "<blockquote>名台詞</blockquote>"},
		{"プレーンテキスト", "字幕版がおすすめ", "字幕版がおすすめ"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_DangerousContentStripped(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name      string
		input     string
		forbidden []string
	}{
		{
			"scriptタグ",
			`<p>あらすじ</p><script>alert("xss")</script>`,
			[]string{"<script", "alert"},
		},
		{
			"iframeタグ",
			`<iframe src="https://evil.example.com"></iframe>`,
			[]string{"<iframe", "evil.example.com"},
		},
		{
			"styleタグ",
			`<style>body{display:none}</style>感想`,
			[]string{"<style"},
		},
		{
			"onerrorイベント属性",
			`<p onerror="steal()">説明</p>`,
			[]string{"onerror", "steal"},
		},
		{
			"imgタグ",
			`<img src="https://example.com/x.png">感想`,
			[]string{"<img"},
		},
		{
			"javascriptスキームのリンク",
			`<a href="javascript:alert(1)">click</a>`,
			[]string{"javascript:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			for _, f := range tt.forbidden {
				if strings.Contains(got, f) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, f)
				}
			}
		})
	}
}

func TestSanitize_LinksGetSafeAttributes(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`<a href="https://example.com/review">レビュー</a>`)

	if !strings.Contains(got, `href="https://example.com/review"`) {
		t.Errorf("href should survive: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=_blank should be added: %q", got)
	}
	if !strings.Contains(got, "noopener") || !strings.Contains(got, "noreferrer") {
		t.Errorf("rel attributes should be added: %q", got)
	}
}

// 同一入力に対して常に同一出力を返すこと。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>あらすじ</p><a href="https://example.com">link</a><script>x()</script>`
	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("sanitization is not idempotent: %q -> %q", first, second)
	}
}
