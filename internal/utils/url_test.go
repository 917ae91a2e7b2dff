package utils_test

import (
	"errors"
	"testing"

	"github.com/raysh454/linkguard/internal/utils"
)

// ─── Canonicalize ──────────────────────────────────────────────────────

func TestCanonicalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		opts utils.CanonicalizeOptions
		want string
	}{
		{
			in:   "HTTP://Example.COM:80/foo/../bar/?b=2&a=1#frag",
			opts: utils.CanonicalizeOptions{},
			want: "http://example.com/bar?a=1&b=2",
		},
		{
			in:   "https://example.com:443/index.html#section",
			opts: utils.CanonicalizeOptions{},
			want: "https://example.com/index.html",
		},
		{
			in:   "https://user:pw@example.com:8443/x",
			opts: utils.CanonicalizeOptions{},
			want: "https://example.com:8443/x",
		},
		{
			in:   "https://例え.テスト/a",
			opts: utils.CanonicalizeOptions{},
			want: "https://xn--r8jz45g.xn--zckzah/a",
		},
		{
			in:   "bit.ly/abc",
			opts: utils.CanonicalizeOptions{DefaultScheme: "https"},
			want: "https://bit.ly/abc",
		},
	}

	for _, tt := range tests {
		got, err := utils.Canonicalize(tt.in, tt.opts)
		if err != nil {
			t.Fatalf("Canonicalize(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	t.Parallel()
	if _, err := utils.Canonicalize("   ", utils.CanonicalizeOptions{}); !errors.Is(err, utils.ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
	if _, err := utils.Canonicalize("/just/a/path", utils.CanonicalizeOptions{}); !errors.Is(err, utils.ErrMissingHost) {
		t.Errorf("expected ErrMissingHost, got %v", err)
	}
	if _, err := utils.Canonicalize("http://[::1", utils.CanonicalizeOptions{}); err == nil {
		t.Error("expected parse error for broken host")
	}
}

// ─── Hostname / HostMatches ────────────────────────────────────────────

func TestHostname(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://BIT.ly/x":          "bit.ly",
		"tinyurl.com/abc":           "tinyurl.com",
		"http://m.Facebook.com:80/": "m.facebook.com",
		"https://bücher.example/":   "xn--bcher-kva.example",
	}
	for in, want := range cases {
		got, err := utils.Hostname(in)
		if err != nil {
			t.Fatalf("Hostname(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Hostname(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := utils.Hostname(""); !errors.Is(err, utils.ErrEmptyURL) {
		t.Errorf("expected ErrEmptyURL, got %v", err)
	}
}

func TestHostMatches(t *testing.T) {
	t.Parallel()
	cases := []struct {
		host, domain string
		want         bool
	}{
		{"bit.ly", "bit.ly", true},
		{"go.bit.ly", "bit.ly", true},
		{"notbit.ly", "bit.ly", false},
		{"facebook.com.evil.xyz", "facebook.com", false},
		{"WWW.Facebook.com.", "facebook.com", true},
	}
	for _, tc := range cases {
		if got := utils.HostMatches(tc.host, tc.domain); got != tc.want {
			t.Errorf("HostMatches(%q, %q) = %v, want %v", tc.host, tc.domain, got, tc.want)
		}
	}
}

func TestEnsureScheme(t *testing.T) {
	t.Parallel()
	if got := utils.EnsureScheme(" example.com "); got != "https://example.com" {
		t.Errorf("got %q", got)
	}
	if got := utils.EnsureScheme("HTTP://example.com"); got != "HTTP://example.com" {
		t.Errorf("existing scheme must be kept, got %q", got)
	}
}

func TestIsAbsoluteHTTPURL(t *testing.T) {
	t.Parallel()
	if !utils.IsAbsoluteHTTPURL("https://example.com/a") {
		t.Error("expected https url to be absolute")
	}
	for _, bad := range []string{"", "example.com", "ftp://example.com", "javascript:alert(1)", "https://"} {
		if utils.IsAbsoluteHTTPURL(bad) {
			t.Errorf("IsAbsoluteHTTPURL(%q) should be false", bad)
		}
	}
}
