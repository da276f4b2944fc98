// Package dedup implements the deduplicator of §4.9: a difference-hash
// (dHash) perceptual hash over a fixed small resolution, plus the exact-
// hash lookup that is the only enabled search path. A Hamming-distance
// neighbor search is provided but unused by the worker pool -- see
// DESIGN.md's Open Question decision for why dedup_similarity_threshold
// stays unread.
package dedup

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"github.com/disintegration/imaging"
)

const (
	hashWidth  = 9 // one extra column feeds the horizontal gradient comparison
	hashHeight = 8
)

// ComputeImageHash returns a deterministic hex-encoded dHash for the
// image encoded in data. Video frames are expected to be pre-extracted
// to a still image by the caller before reaching this function.
func ComputeImageHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("dedup: decode image: %w", err)
	}

	gray := imaging.Grayscale(img)
	small := imaging.Resize(gray, hashWidth, hashHeight, imaging.Lanczos)

	var bitsOut uint64
	var idx uint
	bounds := small.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X-1; x++ {
			left, _, _, _ := small.At(x, y).RGBA()
			right, _, _, _ := small.At(x+1, y).RGBA()
			if left < right {
				bitsOut |= 1 << idx
			}
			idx++
		}
	}

	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bitsOut >> (8 * i))
	}
	return hex.EncodeToString(buf), nil
}

// HammingDistance counts differing bits between two hex-encoded hashes of
// equal length. Returns -1 if the hashes can't be compared.
func HammingDistance(a, b string) int {
	ab, err1 := hex.DecodeString(a)
	bb, err2 := hex.DecodeString(b)
	if err1 != nil || err2 != nil || len(ab) != len(bb) {
		return -1
	}
	dist := 0
	for i := range ab {
		dist += bits.OnesCount8(ab[i] ^ bb[i])
	}
	return dist
}

// WithinThreshold reports whether two hashes are near-duplicates under
// threshold. Exposed for the stubbed similarity-search path (§4.9, §9
// Open Question) but not called by the worker pool, which only performs
// the exact-match fast path.
func WithinThreshold(a, b string, threshold int) bool {
	d := HammingDistance(a, b)
	return d >= 0 && d <= threshold
}
