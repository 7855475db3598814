package asr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	wavData := []byte("RIFFfakewavdata")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer oa-key" {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "utterance.wav" {
			t.Errorf("filename = %q", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "turn on the lights"}`))
	}))
	defer srv.Close()

	client := NewWhisper("oa-key", "", "en").WithBaseURL(srv.URL)
	result, err := client.Transcribe(context.Background(), wavData)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "turn on the lights" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Metrics.TotalMs < result.Metrics.TTFBMs {
		t.Errorf("metrics inconsistent: %+v", result.Metrics)
	}
}

func TestWhisperTranscribeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewWhisper("oa-key", "nonexistent", "").WithBaseURL(srv.URL)
	if _, err := client.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Fatal("Transcribe succeeded, want error")
	}
}
