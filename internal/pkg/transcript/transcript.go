// Package transcript parses VTT and SRT subtitle files into cues and
// builds the denormalized transcript string stored on the archive row
// for full-text search (§4.10).
package transcript

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cue is a single subtitle cue with start/end offsets in seconds.
type Cue struct {
	StartTime float64
	EndTime   float64
	Text      string
}

var (
	vttTimestampRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})\.(\d{3})`)
	srtTimestampRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)
	srtIndexRe     = regexp.MustCompile(`^\d+$`)
	angleTagRe     = regexp.MustCompile(`<[^>]*>`)
)

// ParseVTT implements the WEBVTT half of §4.10: skip the preamble and any
// Kind:/Language: lines; a cue is a timestamp line followed by text lines
// until a blank line. Two consecutive timestamp lines produce no cue for
// the gap between them (bug-guard against treating a timestamp as text).
func ParseVTT(data []byte) ([]Cue, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var cues []Cue
	var current *Cue
	var textLines []string

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(strings.Join(textLines, "\n"))
			if current.Text != "" {
				cues = append(cues, *current)
			}
		}
		current = nil
		textLines = nil
	}

	firstLine := true
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if firstLine {
			firstLine = false
			if strings.HasPrefix(trimmed, "WEBVTT") {
				continue
			}
		}

		if trimmed == "" {
			flush()
			continue
		}

		if strings.HasPrefix(trimmed, "Kind:") || strings.HasPrefix(trimmed, "Language:") {
			continue
		}

		if m := vttTimestampRe.FindStringSubmatch(trimmed); m != nil {
			// A new timestamp line while one is already open (no text
			// emitted between them) means the previous cue was empty;
			// drop it rather than flushing a textless cue.
			current = nil
			textLines = nil

			start, end, err := parseVTTRange(m)
			if err != nil {
				return nil, err
			}
			current = &Cue{StartTime: start, EndTime: end}
			continue
		}

		if current != nil {
			textLines = append(textLines, stripTags(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: scan vtt: %w", err)
	}
	return cues, nil
}

// ParseSRT implements the numeric-index/timestamp/text SRT grammar of
// §4.10, stripping angle-bracket tags from cue text.
func ParseSRT(data []byte) ([]Cue, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var cues []Cue
	var current *Cue
	var textLines []string

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(strings.Join(textLines, "\n"))
			if current.Text != "" {
				cues = append(cues, *current)
			}
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flush()
			continue
		}

		if srtIndexRe.MatchString(trimmed) {
			continue
		}

		if m := srtTimestampRe.FindStringSubmatch(trimmed); m != nil {
			current = nil
			textLines = nil

			start, end, err := parseSRTRange(m)
			if err != nil {
				return nil, err
			}
			current = &Cue{StartTime: start, EndTime: end}
			continue
		}

		if current != nil {
			textLines = append(textLines, stripTags(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transcript: scan srt: %w", err)
	}
	return cues, nil
}

func stripTags(s string) string {
	return angleTagRe.ReplaceAllString(s, "")
}

func parseVTTRange(m []string) (float64, float64, error) {
	start, err := hmsms(m[1], m[2], m[3], m[4])
	if err != nil {
		return 0, 0, err
	}
	end, err := hmsms(m[5], m[6], m[7], m[8])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTRange(m []string) (float64, float64, error) {
	return parseVTTRange(m)
}

func hmsms(h, m, s, ms string) (float64, error) {
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, err
	}
	ss, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	mmm, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	return float64(hh*3600+mm*60+ss) + float64(mmm)/1000.0, nil
}

// BuildTranscript concatenates cue text and prepends [M:SS] markers at
// cue boundaries where the cue starts more than 30s after the last
// emitted marker (§4.10).
func BuildTranscript(cues []Cue) string {
	if len(cues) == 0 {
		return ""
	}

	var b strings.Builder
	lastMarker := -31.0 // guarantees the first cue always emits a marker

	for _, c := range cues {
		if c.StartTime-lastMarker > 30 {
			b.WriteString(formatMarker(c.StartTime))
			lastMarker = c.StartTime
		}
		b.WriteString(c.Text)
		b.WriteString(" ")
	}

	return strings.TrimSpace(b.String())
}

func formatMarker(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("[%d:%02d] ", total/60, total%60)
}
