package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var knownModels = []string{
	"tiny.en",
	"base.en",
	"small.en",
	"medium.en",
	"large-v3",
	"large-v3-turbo",
}

// ModelURL returns the Hugging Face URL of a ggml model.
func ModelURL(name string) (string, bool) {
	for _, m := range knownModels {
		if m == name {
			return modelBaseURL + "ggml-" + name + ".bin", true
		}
	}
	return "", false
}

// KnownModels lists the model names DownloadModel accepts.
func KnownModels() []string {
	out := append([]string(nil), knownModels...)
	sort.Strings(out)
	return out
}

// progressWriter logs download progress at most every two seconds
type progressWriter struct {
	log        zerolog.Logger
	total      int64
	downloaded int64
	lastLog    time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	now := time.Now()
	if now.Sub(pw.lastLog) >= 2*time.Second || pw.downloaded >= pw.total {
		pw.lastLog = now
		pw.log.Info().
			Float64("percent", float64(pw.downloaded)/float64(pw.total)*100).
			Float64("downloaded_mb", float64(pw.downloaded)/1024/1024).
			Float64("total_mb", float64(pw.total)/1024/1024).
			Msg("Downloading model")
	}

	return n, nil
}

// Downloader fetches ggml models.
type Downloader struct {
	Client  *http.Client
	BaseURL string
	Log     zerolog.Logger
}

// DownloadModel fetches a known model into dest with the default client.
func DownloadModel(ctx context.Context, name, dest string, log zerolog.Logger) error {
	d := &Downloader{Client: http.DefaultClient, BaseURL: modelBaseURL, Log: log}
	return d.Download(ctx, name, dest)
}

// Download writes the model to a temp file next to dest and renames it
// into place, so an interrupted download never looks like a model.
func (d *Downloader) Download(ctx context.Context, name, dest string) error {
	if _, ok := ModelURL(name); !ok {
		return fmt.Errorf("unknown model: %s", name)
	}
	url := d.BaseURL + "ggml-" + name + ".bin"
	log := d.Log.With().Str("model", name).Logger()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	tmpPath := dest + ".tmp"
	defer os.Remove(tmpPath)

	log.Info().Str("url", url).Msg("Starting model download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 {
		log.Warn().Msg("Content-Length not provided, progress tracking unavailable")
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	var writer io.Writer = out
	if totalSize > 0 {
		writer = io.MultiWriter(out, &progressWriter{log: log, total: totalSize, lastLog: time.Now()})
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move model file: %w", err)
	}

	log.Info().
		Str("path", dest).
		Float64("size_mb", float64(totalSize)/1024/1024).
		Msg("Model downloaded successfully")

	return nil
}
