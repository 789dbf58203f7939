/**
 * Volcengine OCR Client
 *
 * Remote line-level OCR over HTTP. The service returns parallel arrays of
 * recognized line texts, rectangles and per-line confidence scores; some
 * deployments return four-corner polygons instead of rectangles, and
 * optionally a list of non-text image regions (stickers, embedded photos).
 *
 * The client performs a single request per call. Retrying is the batch
 * coordinator's job so that backoff and cancellation live in one place.
 */

package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatlens/transcript-worker/internal/logging"
)

const volcRequestTimeout = 60 * time.Second

// VolcClient talks to a Volcengine-style OCR endpoint
type VolcClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewVolcClient creates a new Volcengine OCR client
func NewVolcClient(endpoint, apiKey string) *VolcClient {
	return &VolcClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: volcRequestTimeout,
		},
		logger: logging.NewLogger("VolcOCR"),
	}
}

// Name identifies the provider in logs and progress events
func (c *VolcClient) Name() string { return "volc" }

// volcRequest is the request body for line recognition
type volcRequest struct {
	Image  string `json:"image_base64"`
	Format string `json:"format"`
}

// volcRect mirrors the service's rectangle shape
type volcRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// volcData carries the recognition payload. LineRects and Polygons are
// mutually exclusive depending on deployment; LineTexts, rectangles and
// LineProbs are parallel arrays.
type volcData struct {
	LineTexts   []string       `json:"line_texts"`
	LineRects   []volcRect     `json:"line_rects"`
	LineProbs   []float64      `json:"line_probs"`
	Polygons    [][][2]float64 `json:"polygons"`
	ImageBlocks []volcRect     `json:"image_blocks"`
}

// volcResponse is the service envelope
type volcResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    volcData `json:"data"`
}

// PermanentError marks a provider response that must not be retried (client
// side errors such as malformed images or exhausted quota).
type PermanentError struct {
	Status int
	Body   string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("OCR provider rejected request: HTTP %d: %s", e.Status, e.Body)
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Recognize performs one OCR request for a single image
func (c *VolcClient) Recognize(ctx context.Context, image []byte) (*ImageResult, error) {
	reqBody := volcRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Format: "base64",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &PermanentError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR provider error: HTTP %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var parsed volcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse OCR response: %w", err)
	}

	result, err := c.convertResponse(&parsed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("OCR request complete",
		"lines", len(result.Fragments),
		"blocks", len(result.Blocks),
		"duration", time.Since(start))

	return result, nil
}

// convertResponse converts the parallel-array payload into fragments. Lines
// with no usable geometry are dropped rather than treated as errors.
func (c *VolcClient) convertResponse(parsed *volcResponse) (*ImageResult, error) {
	if parsed.Code != 0 && parsed.Code != 10000 {
		return nil, fmt.Errorf("OCR provider error: code=%d message=%s", parsed.Code, parsed.Message)
	}

	data := parsed.Data
	fragments := make([]TextFragment, 0, len(data.LineTexts))

	for i, text := range data.LineTexts {
		rect, ok := c.rectForLine(&data, i)
		if !ok {
			continue
		}

		confidence := 0.0
		if i < len(data.LineProbs) {
			confidence = data.LineProbs[i]
		}

		fragments = append(fragments, TextFragment{
			Text:       text,
			X:          rect.X,
			Y:          rect.Y,
			Width:      rect.Width,
			Height:     rect.Height,
			Confidence: confidence,
		})
	}

	blocks := make([]ImageBlock, 0, len(data.ImageBlocks))
	for _, b := range data.ImageBlocks {
		blocks = append(blocks, ImageBlock{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height})
	}

	return &ImageResult{
		Fragments:  fragments,
		Blocks:     blocks,
		Confidence: meanConfidence(fragments),
	}, nil
}

// rectForLine resolves a line's geometry, falling back from rectangles to
// polygon corners when the deployment only returns polygons.
func (c *VolcClient) rectForLine(data *volcData, i int) (volcRect, bool) {
	if i < len(data.LineRects) {
		return data.LineRects[i], true
	}

	if i < len(data.Polygons) && len(data.Polygons[i]) >= 3 {
		poly := data.Polygons[i]
		minX, minY := poly[0][0], poly[0][1]
		maxX, maxY := minX, minY
		for _, p := range poly[1:] {
			if p[0] < minX {
				minX = p[0]
			}
			if p[0] > maxX {
				maxX = p[0]
			}
			if p[1] < minY {
				minY = p[1]
			}
			if p[1] > maxY {
				maxY = p[1]
			}
		}
		return volcRect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
	}

	return volcRect{}, false
}

func meanConfidence(fragments []TextFragment) float64 {
	if len(fragments) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range fragments {
		sum += f.Confidence
	}
	return sum / float64(len(fragments))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
