package assembly

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FFmpegStitcher concatenates clips with the ffmpeg concat demuxer. Each
// clip's embedded audio survives the concat; an optional background track
// is mixed under the result afterwards.
type FFmpegStitcher struct {
	// OutputDir is where final artifacts land. Defaults to $MEDIA_DIR or
	// ./media.
	OutputDir string

	http *http.Client
}

func NewFFmpegStitcher(outputDir string) *FFmpegStitcher {
	if outputDir == "" {
		outputDir = os.Getenv("MEDIA_DIR")
	}
	if outputDir == "" {
		outputDir = "./media"
	}
	return &FFmpegStitcher{
		OutputDir: outputDir,
		http:      &http.Client{},
	}
}

func (f *FFmpegStitcher) Stitch(ctx context.Context, plan *Plan, backgroundRef string) (string, error) {
	tempDir, err := os.MkdirTemp("", fmt.Sprintf("assembly_%d_", plan.MovieID))
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	// Temp files are removed whatever the outcome.
	defer os.RemoveAll(tempDir)

	var localClips []string
	for i, clip := range plan.Clips {
		local, err := f.localize(ctx, clip.VideoRef, filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i)))
		if err != nil {
			return "", fmt.Errorf("failed to fetch clip for scene %d: %w", clip.SceneNumber, err)
		}
		localClips = append(localClips, local)
	}

	listPath := filepath.Join(tempDir, "concat.txt")
	var list strings.Builder
	for _, clip := range localClips {
		fmt.Fprintf(&list, "file '%s'\n", clip)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}

	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return "", err
	}

	concatPath := filepath.Join(tempDir, "concat.mp4")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		concatPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg concat failed: %w: %s", err, tail(out))
	}

	outPath := filepath.Join(f.OutputDir, fmt.Sprintf("movie_%d_%s.mp4", plan.MovieID, uuid.NewString()[:8]))

	if backgroundRef == "" {
		if err := os.Rename(concatPath, outPath); err != nil {
			// Rename fails across filesystems; fall back to a copy.
			if err := copyFile(concatPath, outPath); err != nil {
				return "", err
			}
		}
		return outPath, nil
	}

	background, err := f.localize(ctx, backgroundRef, filepath.Join(tempDir, "background.mp3"))
	if err != nil {
		return "", fmt.Errorf("failed to fetch background track: %w", err)
	}

	mix := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", concatPath,
		"-i", background,
		"-filter_complex", "[1:a]volume=0.3[bg];[0:a][bg]amix=inputs=2:duration=first[a]",
		"-map", "0:v",
		"-map", "[a]",
		"-c:v", "copy",
		"-c:a", "aac",
		outPath,
	)
	if out, err := mix.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg mix failed: %w: %s", err, tail(out))
	}
	return outPath, nil
}

// localize makes a clip reference usable by ffmpeg: URLs are downloaded to
// dest, local paths are used as-is.
func (f *FFmpegStitcher) localize(ctx context.Context, ref, dest string) (string, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", ref, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// tail keeps error output readable when ffmpeg dumps its full log.
func tail(out []byte) string {
	const max = 400
	s := string(out)
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
