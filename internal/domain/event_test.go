package domain

import (
	"reflect"
	"strings"
	"testing"
)

func TestEventCodecRestoresEveryVariant(t *testing.T) {
	t.Parallel()

	events := []Event{
		SearchingEvent{Query: "Amber Room"},
		FoundEvent{Sources: []Source{{URL: "https://a.example/", Title: "A"}}},
		ScrapingEvent{URL: "https://a.example/", Title: "A", Index: 1, Total: 2, Stage: StageSummarizing},
		ScreenshotCapturedEvent{URL: "https://a.example/", Screenshot: "data:image/png;base64,AA=="},
		SourceCompleteEvent{URL: "https://a.example/", Summary: "s"},
		AnalyzingEvent{},
		ContentChunkEvent{Chunk: "The Amber Room"},
		FinalResultEvent{FinalResult: FinalResult{Content: "c", Sources: []Source{}, FollowUpQuestions: []string{"q"}, Partial: true}},
		ErrorEvent{Message: "boom"},
		DoneEvent{},
	}
	for _, e := range events {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("encode %s: %v", e.Kind(), err)
		}
		if !strings.Contains(string(data), `"type":"`+string(e.Kind())+`"`) {
			t.Fatalf("encoded %s lacks type tag: %s", e.Kind(), data)
		}
		back, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode %s: %v", e.Kind(), err)
		}
		if !reflect.DeepEqual(e, back) {
			t.Fatalf("round trip of %s: got %#v, want %#v", e.Kind(), back, e)
		}
	}
}

func TestDecodeEventRejectsUnknownType(t *testing.T) {
	t.Parallel()

	if _, err := DecodeEvent([]byte(`{"type":"mystery"}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

func TestTerminalEvents(t *testing.T) {
	t.Parallel()

	terminal := map[EventKind]bool{KindFinalResult: true, KindError: true, KindDone: true}
	for _, e := range []Event{SearchingEvent{}, FoundEvent{}, ScrapingEvent{}, ScreenshotCapturedEvent{}, SourceCompleteEvent{}, AnalyzingEvent{}, ContentChunkEvent{}, FinalResultEvent{}, ErrorEvent{}, DoneEvent{}} {
		if e.Terminal() != terminal[e.Kind()] {
			t.Fatalf("%s: Terminal() = %v", e.Kind(), e.Terminal())
		}
	}
}

func TestStripChunks(t *testing.T) {
	t.Parallel()

	got := StripChunks([]Event{SearchingEvent{}, ContentChunkEvent{Chunk: "a"}, ContentChunkEvent{Chunk: "b"}, DoneEvent{}})
	if len(got) != 2 || got[0].Kind() != KindSearching || got[1].Kind() != KindDone {
		t.Fatalf("unexpected stripped trace %+v", got)
	}
}
