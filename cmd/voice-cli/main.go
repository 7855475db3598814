// Command voice-cli runs one voice session from the terminal using the
// local microphone. Vendor API keys come from the environment; transcripts
// and replies are printed as they stream, and synthesized audio can be
// dumped to a file for inspection.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeshark2/freesoft/internal/dotenv"
	"github.com/codeshark2/freesoft/pkg/core/audioio"
	"github.com/codeshark2/freesoft/pkg/core/live"
	"github.com/codeshark2/freesoft/pkg/core/types"
	"github.com/codeshark2/freesoft/pkg/core/voice"
)

func main() {
	asrVendor := flag.String("asr", live.ASRVendorDeepgram, "asr vendor (deepgram, whisper)")
	asrModel := flag.String("asr-model", "nova-2", "asr model")
	llmVendor := flag.String("llm", live.LLMVendorOpenAI, "llm vendor (openai, groq)")
	llmModel := flag.String("llm-model", "gpt-4o-mini", "llm model")
	ttsVendor := flag.String("tts", live.TTSVendorElevenLabs, "tts vendor (elevenlabs, openai)")
	voiceID := flag.String("voice", "21m00Tcm4TlvDq8ikWAM", "tts voice id")
	vadStrategy := flag.String("vad", string(live.VADStrategyEnergy), "vad strategy for batch asr (energy, neural)")
	vadModel := flag.String("vad-model", "", "path to the silero onnx model, required with -vad neural")
	prompt := flag.String("prompt", "You are a helpful voice assistant. Keep replies short.", "system prompt")
	maxDuration := flag.Duration("max-duration", 60*time.Second, "session deadline")
	audioOut := flag.String("audio-out", "", "file to append raw synthesized audio to")
	flag.Parse()

	if err := dotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	config := live.DefaultSessionConfig()
	config.SystemPrompt = *prompt
	config.MaxDuration = *maxDuration
	config.ASR = live.ASRConfig{Vendor: *asrVendor, APIKey: os.Getenv("ASR_API_KEY"), Model: *asrModel, Language: "en"}
	config.LLM = live.LLMConfig{Vendor: *llmVendor, APIKey: os.Getenv("LLM_API_KEY"), Model: *llmModel}
	config.TTS = live.TTSConfig{Vendor: *ttsVendor, APIKey: os.Getenv("TTS_API_KEY"), VoiceID: *voiceID}
	config.VAD.Strategy = live.VADStrategy(*vadStrategy)
	config.VAD.ModelPath = *vadModel

	clients, err := voice.BuildClients(config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var sink *os.File
	if *audioOut != "" {
		sink, err = os.Create(*audioOut)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open audio output:", err)
			os.Exit(1)
		}
		defer sink.Close()
	}

	source := audioio.NewPortAudioSource(config.Audio.SampleRate, config.Audio.FrameSize)
	session, err := live.NewSession(config, clients, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	done := make(chan struct{})
	callbacks := live.Callbacks{
		OnStateChange: func(state live.SessionState) {
			fmt.Printf("\n[%s]\n", state)
		},
		OnInterimTranscript: func(text string) {
			fmt.Printf("\r… %s", text)
		},
		OnTranscript: func(text string, metrics live.StageMetrics) {
			fmt.Printf("\ryou: %s\n", text)
		},
		OnLLMToken: func(token string, isComplete bool) {
			if isComplete {
				fmt.Println()
				return
			}
			fmt.Print(token)
		},
		OnAudioChunk: func(audio []byte, isFirst bool) {
			if sink != nil {
				_, _ = sink.Write(audio)
			}
		},
		OnTurnComplete: func(turn live.Turn) {
			fmt.Printf("turn %d: round trip %.0f ms (asr %.0f, llm %.0f, tts %.0f)\n",
				turn.ID, turn.Metrics.RoundTripMs,
				turn.Metrics.ASR.TotalMs, turn.Metrics.LLM.TotalMs, turn.Metrics.TTS.TotalMs)
		},
		OnError: func(err error, stage types.Stage) {
			fmt.Fprintf(os.Stderr, "\n%s error: %v\n", stage, err)
		},
		OnSessionEnd: func(summary live.SessionSummary) {
			fmt.Printf("\nsession ended (%s): %d turns in %s\n",
				summary.Reason, len(summary.Turns), summary.Duration.Round(time.Millisecond))
			close(done)
		},
	}

	if err := session.Start(callbacks); err != nil {
		fmt.Fprintln(os.Stderr, "start failed:", err)
		os.Exit(1)
	}
	slog.Info("listening", "session_id", session.ID(), "max_duration", *maxDuration)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		session.Stop()
		<-done
	case <-done:
	}
}
