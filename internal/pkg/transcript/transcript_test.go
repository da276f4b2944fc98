package transcript

import (
	"strings"
	"testing"
)

func TestParseVTT(t *testing.T) {
	t.Run("parses a simple cue list", func(t *testing.T) {
		data := []byte("WEBVTT\nKind: captions\nLanguage: en\n\n00:00:01.000 --> 00:00:03.000\nHello there\n\n00:00:04.500 --> 00:00:06.000\nGeneral Kenobi\n")
		cues, err := ParseVTT(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(cues) != 2 {
			t.Fatalf("expected 2 cues, got %d", len(cues))
		}
		if cues[0].Text != "Hello there" || cues[0].StartTime != 1 || cues[0].EndTime != 3 {
			t.Errorf("unexpected first cue: %+v", cues[0])
		}
		if cues[1].Text != "General Kenobi" {
			t.Errorf("unexpected second cue: %+v", cues[1])
		}
	})

	t.Run("consecutive timestamp lines produce no cue for the empty gap", func(t *testing.T) {
		data := []byte("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n00:00:02.000 --> 00:00:03.000\nActual text\n")
		cues, err := ParseVTT(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if len(cues) != 1 {
			t.Fatalf("expected 1 cue, got %d: %+v", len(cues), cues)
		}
		if cues[0].Text != "Actual text" {
			t.Errorf("unexpected cue text: %q", cues[0].Text)
		}
	})
}

func TestParseSRT(t *testing.T) {
	data := []byte("1\n00:00:01,000 --> 00:00:03,000\n<b>Hello</b> there\n\n2\n00:00:04,500 --> 00:00:06,000\nGeneral Kenobi\n")
	cues, err := ParseSRT(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].Text != "Hello there" {
		t.Errorf("expected tags stripped, got %q", cues[0].Text)
	}
}

func TestVTTSRTRoundTrip(t *testing.T) {
	vtt := []byte("WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nSame words\n")
	srt := []byte("1\n00:00:01,000 --> 00:00:03,000\nSame words\n")

	vttCues, err := ParseVTT(vtt)
	if err != nil {
		t.Fatalf("parse vtt: %v", err)
	}
	srtCues, err := ParseSRT(srt)
	if err != nil {
		t.Fatalf("parse srt: %v", err)
	}

	if len(vttCues) != len(srtCues) {
		t.Fatalf("cue count mismatch: %d vs %d", len(vttCues), len(srtCues))
	}
	if vttCues[0].Text != srtCues[0].Text || vttCues[0].StartTime != srtCues[0].StartTime {
		t.Errorf("equivalent VTT/SRT cues diverged: %+v vs %+v", vttCues[0], srtCues[0])
	}
}

func TestBuildTranscript(t *testing.T) {
	t.Run("always marks the first cue", func(t *testing.T) {
		cues := []Cue{{StartTime: 0, EndTime: 2, Text: "hi"}}
		got := BuildTranscript(cues)
		if !strings.HasPrefix(got, "[0:00]") {
			t.Errorf("expected leading marker, got %q", got)
		}
	})

	t.Run("marks only after crossing the 30s threshold", func(t *testing.T) {
		cues := []Cue{
			{StartTime: 0, EndTime: 2, Text: "one"},
			{StartTime: 10, EndTime: 12, Text: "two"},
			{StartTime: 45, EndTime: 47, Text: "three"},
		}
		got := BuildTranscript(cues)
		if strings.Count(got, "[") != 2 {
			t.Errorf("expected exactly 2 markers, got %q", got)
		}
		if !strings.Contains(got, "[0:45]") {
			t.Errorf("expected a marker at 0:45, got %q", got)
		}
	})
}
