package security

import (
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicURLs(t *testing.T) {
	g := NewCoverURLGuard()

	tests := []string{
		"https://example.com/poster.jpg",
		"http://cdn.example.org/images/cover.png",
		"https://93.184.216.34/poster.jpg",
		"HTTPS://EXAMPLE.COM/UPPER.PNG",
	}

	for _, rawURL := range tests {
		t.Run(rawURL, func(t *testing.T) {
			if err := g.ValidateURL(rawURL); err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
			}
		})
	}
}

func TestValidateURL_BlocksDangerousURLs(t *testing.T) {
	g := NewCoverURLGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"空文字列", ""},
		{"ホストなし", "https:///poster.jpg"},
		{"fileスキーム", "file:///etc/passwd"},
		{"ftpスキーム", "ftp://example.com/a.png"},
		{"javascriptスキーム", "javascript:alert(1)"},
		{"localhost", "http://localhost/poster.jpg"},
		{"大文字のlocalhost", "http://LOCALHOST/poster.jpg"},
		{"ループバックIP", "http://127.0.0.1/poster.jpg"},
		{"プライベートIP 10系", "http://10.0.0.5/poster.jpg"},
		{"プライベートIP 172系", "http://172.16.0.1/poster.jpg"},
		{"プライベートIP 192系", "http://192.168.1.1/poster.jpg"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"カレントネットワーク", "http://0.0.0.0/poster.jpg"},
		{"IPv6ループバック", "http://[::1]/poster.jpg"},
		{"IPv6リンクローカル", "http://[fe80::1]/poster.jpg"},
		{"IPv6ユニークローカル", "http://[fd00::1]/poster.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
		})
	}
}

func TestNewSafeClient_ReturnsConfiguredClient(t *testing.T) {
	g := NewCoverURLGuard()

	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Transport == nil {
		t.Error("safe client should carry a guarding transport")
	}
}
