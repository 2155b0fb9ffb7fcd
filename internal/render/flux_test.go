package render_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/videoforge/internal/config"
	"github.com/videoforge/videoforge/internal/render"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func fluxServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer flux-key", r.Header.Get("Authorization"))

		var req struct {
			Prompt string `json:"prompt"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Prompt)
		assert.Equal(t, 1920, req.Width)

		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write(pngBytes)
		}
	}))
}

func fluxGenerator(baseURL string) *render.FluxGenerator {
	return render.NewFluxGenerator(config.FluxConfig{
		BaseURL: baseURL,
		APIKey:  "flux-key",
		Width:   1920,
		Height:  1080,
		Timeout: 5 * time.Second,
	})
}

func TestFluxGenerate_WritesImage(t *testing.T) {
	srv := fluxServer(t, http.StatusOK)
	defer srv.Close()

	outDir := t.TempDir()
	path, err := fluxGenerator(srv.URL).Generate(context.Background(), "a skyline at dusk", outDir)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}

func TestFluxGenerate_SamePromptSamePath(t *testing.T) {
	srv := fluxServer(t, http.StatusOK)
	defer srv.Close()

	outDir := t.TempDir()
	g := fluxGenerator(srv.URL)
	p1, err := g.Generate(context.Background(), "a skyline at dusk", outDir)
	require.NoError(t, err)
	p2, err := g.Generate(context.Background(), "a skyline at dusk", outDir)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	p3, err := g.Generate(context.Background(), "a forest in fog", outDir)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p3)
}

func TestFluxGenerate_ServerError(t *testing.T) {
	srv := fluxServer(t, http.StatusInternalServerError)
	defer srv.Close()

	_, err := fluxGenerator(srv.URL).Generate(context.Background(), "a skyline", t.TempDir())
	assert.ErrorIs(t, err, render.ErrGeneratorUnavailable)
}

func TestFluxGenerate_UnreachableEndpoint(t *testing.T) {
	g := fluxGenerator("http://127.0.0.1:1")

	_, err := g.Generate(context.Background(), "a skyline", t.TempDir())
	assert.ErrorIs(t, err, render.ErrGeneratorUnavailable)
}

func TestNewGenerator_Selection(t *testing.T) {
	g, err := render.NewGenerator(config.RenderConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", g.Name())

	g, err = render.NewGenerator(config.RenderConfig{Provider: "flux", Flux: config.FluxConfig{BaseURL: "http://x"}})
	require.NoError(t, err)
	assert.Equal(t, "flux", g.Name())

	_, err = render.NewGenerator(config.RenderConfig{Provider: "dalle"})
	assert.Error(t, err)
}
