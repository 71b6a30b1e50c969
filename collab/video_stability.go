package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const stabilityImageToVideoURL = "https://api.stability.ai/v2beta/image-to-video"

// StabilityVideoAnimator drives the asynchronous image-to-video API: submit
// the source frame, then poll for the rendered clip.
type StabilityVideoAnimator struct {
	apiKey string
	http   *http.Client

	pollInterval time.Duration
}

func NewStabilityVideoAnimator(apiKey string) *StabilityVideoAnimator {
	return &StabilityVideoAnimator{
		apiKey:       apiKey,
		http:         &http.Client{Timeout: DefaultTimeout},
		pollInterval: 5 * time.Second,
	}
}

func (g *StabilityVideoAnimator) Animate(ctx context.Context, imageRef, prompt string, frameCount int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*DefaultTimeout)
	defer cancel()

	image, err := readRef(ctx, g.http, imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to load source image: %w", err)
	}

	generationID, err := g.submit(ctx, image, frameCount)
	if err != nil {
		return "", err
	}

	for {
		clip, done, err := g.poll(ctx, generationID)
		if err != nil {
			return "", err
		}
		if done {
			return writeMediaFile("clip_"+uuid.NewString()+".mp4", clip)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
}

func (g *StabilityVideoAnimator) submit(ctx context.Context, image []byte, frameCount int) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("image", "frame.png")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(image); err != nil {
		return "", err
	}
	_ = mw.WriteField("motion_bucket_id", strconv.Itoa(frameCount))
	_ = mw.WriteField("cfg_scale", "1.8")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, stabilityImageToVideoURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stability video submit error %d: %s", resp.StatusCode, msg)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode submit response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("stability returned no generation id")
	}
	return parsed.ID, nil
}

// poll returns (clip, true, nil) once rendering finished, (nil, false, nil)
// while still in progress.
func (g *StabilityVideoAnimator) poll(ctx context.Context, generationID string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		stabilityImageToVideoURL+"/result/"+generationID, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "video/*")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil, false, nil
	case http.StatusOK:
		clip, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		return clip, true, nil
	default:
		msg, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("stability video poll error %d: %s", resp.StatusCode, msg)
	}
}

// readRef loads bytes from an http(s) URL or a local file path.
func readRef(ctx context.Context, client *http.Client, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: status %d", ref, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(ref)
}
