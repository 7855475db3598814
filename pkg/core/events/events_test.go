package events

import (
	"testing"
	"time"
)

func TestLogAppendOrder(t *testing.T) {
	log := NewLog("s1")
	log.Append(TypeSessionStart, Payload{})
	log.Append(TypeAudioChunkReceived, Payload{Bytes: 3200})
	log.Append(TypeASRFinal, Payload{Text: "hi"})

	evs := log.Events()
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3", len(evs))
	}
	want := []Type{TypeSessionStart, TypeAudioChunkReceived, TypeASRFinal}
	for i, w := range want {
		if evs[i].Type != w {
			t.Errorf("event %d = %s, want %s", i, evs[i].Type, w)
		}
		if evs[i].SessionID != "s1" {
			t.Errorf("event %d session id = %q", i, evs[i].SessionID)
		}
		if evs[i].Timestamp.IsZero() {
			t.Errorf("event %d missing timestamp", i)
		}
	}
}

func TestLogSnapshotIsolation(t *testing.T) {
	log := NewLog("s1")
	log.Append(TypeSessionStart, Payload{})

	snap := log.Events()
	snap[0].Type = TypeError

	if got := log.Events()[0].Type; got != TypeSessionStart {
		t.Errorf("snapshot mutation leaked into the log: %s", got)
	}
}

func TestLogAppendAtKeepsExplicitTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewLog("s1")
	log.AppendAt(TypeASRFinal, ts, Payload{Text: "x", SpeechEnd: ts})

	ev := log.Events()[0]
	if !ev.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, ts)
	}
	if log.Len() != 1 {
		t.Errorf("len = %d, want 1", log.Len())
	}
}
