package dedup

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, fill func(x, y int) color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestComputeImageHash(t *testing.T) {
	t.Run("identical images hash identically", func(t *testing.T) {
		data := encodePNG(t, func(x, y int) color.Color {
			if x < 50 {
				return color.White
			}
			return color.Black
		}, 100, 100)

		h1, err := ComputeImageHash(data)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		h2, err := ComputeImageHash(data)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		if h1 != h2 {
			t.Errorf("expected deterministic hash, got %q != %q", h1, h2)
		}
	})

	t.Run("visually different images hash differently", func(t *testing.T) {
		left := encodePNG(t, func(x, y int) color.Color { return color.White }, 100, 100)
		right := encodePNG(t, func(x, y int) color.Color {
			if (x+y)%2 == 0 {
				return color.White
			}
			return color.Black
		}, 100, 100)

		h1, _ := ComputeImageHash(left)
		h2, _ := ComputeImageHash(right)
		if h1 == h2 {
			t.Errorf("expected different hashes for visually distinct images")
		}
	})
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance("ff", "00"); d != 8 {
		t.Errorf("expected 8 differing bits, got %d", d)
	}
	if d := HammingDistance("ff", "ff"); d != 0 {
		t.Errorf("expected 0 differing bits, got %d", d)
	}
	if d := HammingDistance("ff", "0"); d != -1 {
		t.Errorf("expected -1 for mismatched lengths, got %d", d)
	}
}

func TestWithinThreshold(t *testing.T) {
	if !WithinThreshold("ff", "fe", 1) {
		t.Errorf("expected within threshold 1")
	}
	if WithinThreshold("ff", "00", 1) {
		t.Errorf("expected not within threshold 1")
	}
}
