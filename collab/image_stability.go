package collab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const stabilityTextToImageURL = "https://api.stability.ai/v1/generation/stable-diffusion-v1-6/text-to-image"

// stylePresets map a requested visual style to prompt keywords.
var stylePresets = map[string]string{
	"cinematic": "cinematic, dramatic lighting, movie poster style, highly detailed, 8k, masterpiece",
	"anime":     "anime style, manga, cel shading, vibrant colors, high contrast, detailed",
	"fantasy":   "fantasy art, magical, ethereal, mystical, highly detailed, digital painting",
	"realistic": "photorealistic, highly detailed, professional photography, natural lighting",
	"noir":      "film noir, black and white, high contrast, dramatic shadows, vintage",
	"sci-fi":    "science fiction, futuristic, cyberpunk, neon lights, high tech, detailed",
}

// StabilityImageGenerator calls the Stability text-to-image API and stores
// the resulting PNG under the media directory.
type StabilityImageGenerator struct {
	apiKey string
	http   *http.Client
}

func NewStabilityImageGenerator(apiKey string) *StabilityImageGenerator {
	return &StabilityImageGenerator{
		apiKey: apiKey,
		http:   &http.Client{Timeout: DefaultTimeout},
	}
}

type stabilityTextPrompt struct {
	Text string `json:"text"`
}

type stabilityImageRequest struct {
	TextPrompts []stabilityTextPrompt `json:"text_prompts"`
	CfgScale    float64               `json:"cfg_scale"`
	Height      int                   `json:"height"`
	Width       int                   `json:"width"`
	Samples     int                   `json:"samples"`
	Steps       int                   `json:"steps"`
}

type stabilityImageResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

func (g *StabilityImageGenerator) Generate(ctx context.Context, prompt, style string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	preset, ok := stylePresets[style]
	if !ok {
		preset = stylePresets["cinematic"]
	}

	reqBody := stabilityImageRequest{
		TextPrompts: []stabilityTextPrompt{{Text: prompt + ", " + preset}},
		CfgScale:    7,
		Height:      512,
		Width:       512,
		Samples:     1,
		Steps:       30,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stabilityTextToImageURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stability API error %d: %s", resp.StatusCode, msg)
	}

	var parsed stabilityImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode stability response: %w", err)
	}
	if len(parsed.Artifacts) == 0 {
		return "", fmt.Errorf("stability returned no artifacts")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
	if err != nil {
		return "", fmt.Errorf("failed to decode artifact: %w", err)
	}

	return writeMediaFile("image_"+uuid.NewString()+".png", data)
}

// MediaDir is where generated artifacts are written.
func MediaDir() string {
	dir := os.Getenv("MEDIA_DIR")
	if dir == "" {
		dir = "./media"
	}
	return dir
}

func writeMediaFile(name string, data []byte) (string, error) {
	dir := MediaDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
