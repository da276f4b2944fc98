package urlnorm

import "testing"

func TestNormalize(t *testing.T) {
	t.Run("forces https and lowercases host", func(t *testing.T) {
		got := Normalize("http://Example.COM/path")
		if got != "https://example.com/path" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("drops default port", func(t *testing.T) {
		got := Normalize("https://example.com:443/path")
		if got != "https://example.com/path" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("drops fragment", func(t *testing.T) {
		got := Normalize("https://example.com/path#section")
		if got != "https://example.com/path" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("filters tracking params", func(t *testing.T) {
		got := Normalize("https://example.com/path?utm_source=x&fbclid=y&real=1")
		if got != "https://example.com/path?real=1" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("drops all params when only tracking params present", func(t *testing.T) {
		got := Normalize("https://example.com/path?utm_source=x")
		if got != "https://example.com/path" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("trims one trailing slash from non-root path", func(t *testing.T) {
		got := Normalize("https://example.com/path/")
		if got != "https://example.com/path" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("does not trim root path", func(t *testing.T) {
		got := Normalize("https://example.com/")
		if got != "https://example.com/" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("non-HTTP URL passes through unchanged", func(t *testing.T) {
		got := Normalize("ftp://example.com/file")
		if got != "ftp://example.com/file" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("unparseable input passes through unchanged", func(t *testing.T) {
		raw := "not a url at all"
		if Normalize(raw) != raw {
			t.Errorf("expected unchanged passthrough")
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		u := "HTTP://Example.com:443/a/b/?utm_source=x&z=1#frag"
		once := Normalize(u)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("normalize not idempotent: %q != %q", once, twice)
		}
	})
}

func TestDomain(t *testing.T) {
	got := Domain(Normalize("https://Example.COM:443/path"))
	if got != "example.com" {
		t.Errorf("got %q", got)
	}
}
