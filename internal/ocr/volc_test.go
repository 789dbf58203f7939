package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func volcServer(t *testing.T, status int, response interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req volcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Image)

		w.WriteHeader(status)
		if response != nil {
			json.NewEncoder(w).Encode(response)
		}
	}))
}

func TestVolcRecognizeParsesRects(t *testing.T) {
	server := volcServer(t, http.StatusOK, volcResponse{
		Code: 10000,
		Data: volcData{
			LineTexts: []string{"你好", "hello"},
			LineRects: []volcRect{
				{X: 40, Y: 100, Width: 120, Height: 30},
				{X: 700, Y: 200, Width: 150, Height: 30},
			},
			LineProbs: []float64{0.98, 0.92},
		},
	})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	result, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.NoError(t, err)

	require.Len(t, result.Fragments, 2)
	assert.Equal(t, "你好", result.Fragments[0].Text)
	assert.Equal(t, 40.0, result.Fragments[0].X)
	assert.Equal(t, 160.0, result.Fragments[0].Right())
	assert.Equal(t, 0.98, result.Fragments[0].Confidence)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
}

func TestVolcRecognizePolygonFallback(t *testing.T) {
	// Some deployments return four-corner polygons instead of rects; the
	// bounding box of the corners is used
	server := volcServer(t, http.StatusOK, volcResponse{
		Code: 0,
		Data: volcData{
			LineTexts: []string{"tilted line"},
			Polygons: [][][2]float64{
				{{100, 50}, {300, 60}, {298, 90}, {98, 80}},
			},
			LineProbs: []float64{0.9},
		},
	})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	result, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.NoError(t, err)

	require.Len(t, result.Fragments, 1)
	f := result.Fragments[0]
	assert.Equal(t, 98.0, f.X)
	assert.Equal(t, 50.0, f.Y)
	assert.Equal(t, 202.0, f.Width)
	assert.Equal(t, 40.0, f.Height)
}

func TestVolcRecognizeImageBlocks(t *testing.T) {
	server := volcServer(t, http.StatusOK, volcResponse{
		Code: 0,
		Data: volcData{
			LineTexts: []string{"看这张图"},
			LineRects: []volcRect{{X: 40, Y: 100, Width: 160, Height: 30}},
			LineProbs: []float64{0.97},
			ImageBlocks: []volcRect{
				{X: 40, Y: 200, Width: 400, Height: 300},
			},
		},
	})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	result, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.NoError(t, err)

	require.Len(t, result.Blocks, 1)
	assert.Equal(t, 400.0, result.Blocks[0].Width)
}

func TestVolcRecognizeDropsLinesWithoutGeometry(t *testing.T) {
	server := volcServer(t, http.StatusOK, volcResponse{
		Code: 0,
		Data: volcData{
			LineTexts: []string{"has rect", "no rect"},
			LineRects: []volcRect{{X: 40, Y: 100, Width: 120, Height: 30}},
			LineProbs: []float64{0.9, 0.9},
		},
	})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	result, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.NoError(t, err)
	require.Len(t, result.Fragments, 1)
	assert.Equal(t, "has rect", result.Fragments[0].Text)
}

func TestVolcRecognizeClientErrorIsPermanent(t *testing.T) {
	server := volcServer(t, http.StatusBadRequest, map[string]string{"error": "bad image"})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	_, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestVolcRecognizeServerErrorIsTransient(t *testing.T) {
	server := volcServer(t, http.StatusBadGateway, nil)
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	_, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestVolcRecognizeProviderErrorCode(t *testing.T) {
	server := volcServer(t, http.StatusOK, volcResponse{Code: 50000, Message: "internal"})
	defer server.Close()

	client := NewVolcClient(server.URL, "test-key")
	_, err := client.Recognize(context.Background(), []byte("fake-image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50000")
	assert.False(t, IsPermanent(err))
}

func TestIsPermanentNonPermanent(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(context.Canceled))
}
