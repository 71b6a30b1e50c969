package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cineo-ai/cineo-api/models"
	"github.com/google/uuid"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsModelID      = "eleven_monolingual_v1"
)

// ElevenLabsSynthesizer produces dialogue speech via text-to-speech and
// background music via the sound-generation endpoint.
type ElevenLabsSynthesizer struct {
	apiKey  string
	baseURL string
	voiceID string
	http    *http.Client
}

func NewElevenLabsSynthesizer(apiKey string) *ElevenLabsSynthesizer {
	voice := os.Getenv("ELEVENLABS_VOICE_ID")
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}
	return &ElevenLabsSynthesizer{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		voiceID: voice,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsTTSRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

func (s *ElevenLabsSynthesizer) Speech(ctx context.Context, text string) (string, error) {
	reqBody := elevenLabsTTSRequest{
		Text:    text,
		ModelID: elevenLabsModelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	audio, err := s.post(ctx, s.baseURL+"/text-to-speech/"+s.voiceID, reqBody)
	if err != nil {
		return "", err
	}
	return writeMediaFile("speech_"+uuid.NewString()+".mp3", audio)
}

type elevenLabsSoundRequest struct {
	Text            string `json:"text"`
	DurationSeconds int    `json:"duration_seconds"`
}

// musicPrompts describe each supported genre to the sound model.
var musicPrompts = map[string]string{
	"action":  "High-energy orchestral action music with driving percussion",
	"comedy":  "Playful upbeat comedic music with light instruments",
	"drama":   "Emotional orchestral drama score with strings",
	"fantasy": "Sweeping magical fantasy orchestra with choir",
	"horror":  "Dark unsettling horror soundscape with dissonant strings",
	"romance": "Tender romantic piano and strings melody",
	"sci-fi":  "Futuristic electronic ambient score with synthesizers",
}

func (s *ElevenLabsSynthesizer) Music(ctx context.Context, desc models.MusicDescriptor) (string, error) {
	base, ok := musicPrompts[desc.Genre]
	if !ok {
		base = "Cinematic orchestral film score"
	}
	duration := desc.Duration
	if duration <= 0 {
		duration = 30
	}

	reqBody := elevenLabsSoundRequest{
		Text:            fmt.Sprintf("%s, %s mood", base, desc.Mood),
		DurationSeconds: duration,
	}
	audio, err := s.post(ctx, s.baseURL+"/sound-generation", reqBody)
	if err != nil {
		return "", err
	}
	return writeMediaFile("music_"+uuid.NewString()+".mp3", audio)
}

func (s *ElevenLabsSynthesizer) post(ctx context.Context, url string, body interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs API error %d: %s", resp.StatusCode, msg)
	}
	return io.ReadAll(resp.Body)
}
