package metrics

// Fixed per-unit vendor pricing, USD, as of 2025.
const (
	// ASRPricePerMinute is Deepgram Nova 2 streaming pricing.
	ASRPricePerMinute = 0.0043

	// LLMPricePerKInputTokens and LLMPricePerKOutputTokens are GPT-4o
	// pricing per 1K tokens.
	LLMPricePerKInputTokens  = 0.0025
	LLMPricePerKOutputTokens = 0.01

	// TTSPricePerCharacter is ElevenLabs Turbo v2 pricing.
	TTSPricePerCharacter = 0.0003
)

// UsageTotals aggregates billable quantities across a session.
type UsageTotals struct {
	AudioMinutes float64 `json:"audio_minutes"`
	TokensInput  int     `json:"tokens_input"`
	TokensOutput int     `json:"tokens_output"`
	Characters   int     `json:"characters"`
}

// CostTotals is the derived cost per stage plus the grand total.
type CostTotals struct {
	ASR   float64 `json:"asr"`
	LLM   float64 `json:"llm"`
	TTS   float64 `json:"tts"`
	Total float64 `json:"total"`
}

// CalculateCosts derives cost from usage and the fixed pricing constants.
// Zero usage yields zero cost, never an error.
func CalculateCosts(usage UsageTotals) CostTotals {
	asr := usage.AudioMinutes * ASRPricePerMinute
	llm := float64(usage.TokensInput)/1000*LLMPricePerKInputTokens +
		float64(usage.TokensOutput)/1000*LLMPricePerKOutputTokens
	tts := float64(usage.Characters) * TTSPricePerCharacter

	return CostTotals{
		ASR:   asr,
		LLM:   llm,
		TTS:   tts,
		Total: asr + llm + tts,
	}
}
