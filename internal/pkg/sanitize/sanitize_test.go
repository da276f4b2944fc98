package sanitize

import (
	"strings"
	"testing"
)

func TestFilename(t *testing.T) {
	t.Run("spaces become underscores", func(t *testing.T) {
		if got := Filename("my video.mp4"); got != "my_video.mp4" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("disallowed characters become underscores", func(t *testing.T) {
		if got := Filename("a/b:c*d.jpg"); got != "a_b_c_d.jpg" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("consecutive underscores collapse", func(t *testing.T) {
		if got := Filename("a   b.png"); got != "a_b.png" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("preserves allowed punctuation", func(t *testing.T) {
		if got := Filename("clip (2024) [final]-v2.mov"); got != "clip_(2024)_[final]-v2.mov" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("truncates long stems but preserves extension", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		got := Filename(long + ".txt")
		if !strings.HasSuffix(got, ".txt") {
			t.Fatalf("expected .txt suffix, got %q", got)
		}
		if len(got)-len(".txt") > 200 {
			t.Errorf("stem too long: %d bytes", len(got)-len(".txt"))
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := Filename("Weird Name!! [v1].mp4")
		twice := Filename(once)
		if once != twice {
			t.Errorf("not idempotent: %q != %q", once, twice)
		}
	})
}
