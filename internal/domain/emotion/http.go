package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/version"
)

// DefaultHTTPTimeout bounds a request to the detection service.
const DefaultHTTPTimeout = 15 * time.Second

// ErrNoFace is returned when the service saw no face.
var ErrNoFace = errors.New("no face detected")

// face is one entry of the detection service response, the shape produced by
// FER's detect_emotions: a bounding box and a score per emotion.
type face struct {
	Box      []int              `json:"box"`
	Emotions map[string]float64 `json:"emotions"`
}

// labelFor maps FER emotion names to catalog labels.
var labelFor = map[string]string{
	"happy":    "Happy",
	"sad":      "Sad",
	"angry":    "Angry",
	"disgust":  "Angry",
	"neutral":  "Neutral",
	"surprise": "Surprised",
	"fear":     "Surprised",
}

// HTTPDetector asks an external facial-expression service for the listener's
// emotion. The service captures a frame and answers with a JSON array of faces.
type HTTPDetector struct {
	url        string
	httpClient *http.Client
}

// HTTPOption is a functional option for configuring the HTTP detector.
type HTTPOption func(*HTTPDetector)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTPDetector) {
		d.httpClient = client
	}
}

// NewHTTPDetector creates a detector for the service at url.
func NewHTTPDetector(url string, opts ...HTTPOption) *HTTPDetector {
	d := &HTTPDetector{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect implements Detector. The dominant emotion of the first face wins.
func (d *HTTPDetector) Detect(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("emotion service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("emotion service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var faces []face
	if err := json.NewDecoder(resp.Body).Decode(&faces); err != nil {
		return "", fmt.Errorf("failed to decode emotion response: %w", err)
	}
	if len(faces) == 0 {
		return "", ErrNoFace
	}

	name := Dominant(faces[0].Emotions)
	label, ok := labelFor[name]
	if !ok {
		label = "Neutral"
	}

	log.Debug().Str("fer", name).Str("label", label).Msg("Emotion detected")
	return label, nil
}

// Dominant returns the emotion with the highest score. Ties go to the
// alphabetically first name so results are stable.
func Dominant(scores map[string]float64) string {
	best := ""
	bestScore := -1.0
	for name, score := range scores {
		if score > bestScore || (score == bestScore && name < best) {
			best = name
			bestScore = score
		}
	}
	return best
}
