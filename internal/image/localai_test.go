package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localAIServer(t *testing.T, images ...[]byte) (*httptest.Server, *localAIRequest) {
	t.Helper()
	var body localAIRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": "list", "data": [{"id": "flux.1-dev", "object": "model"}]}`))
	})
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := make([]map[string]string, 0, len(images))
		for _, img := range images {
			data = append(data, map[string]string{"b64_json": base64.StdEncoding.EncodeToString(img)})
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"created": 1, "data": data}))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &body
}

func TestLocalAILoadAndGenerate(t *testing.T) {
	first := pngFixture(t, color.White)
	second := pngFixture(t, color.Black)
	server, body := localAIServer(t, first, second)

	load := NewLocalAILoader(server.Client(), server.URL)
	pipeline, err := load(context.Background(), LoadParams{Model: "flux.1-dev"})
	require.NoError(t, err)

	images, err := pipeline.Generate(context.Background(), Params{
		Prompt:            "A red fox",
		Height:            512,
		Width:             768,
		NumInferenceSteps: 20,
		Seed:              0,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, first, images[0].Data)
	assert.Equal(t, second, images[1].Data)
	assert.Equal(t, "image/png", images[0].MIMEType)

	assert.Equal(t, localAIRequest{
		Model:          "flux.1-dev",
		Prompt:         "A red fox",
		N:              1,
		Size:           "768x512",
		Step:           20,
		ResponseFormat: "b64_json",
	}, *body)
}

func TestLocalAILoadUnknownModel(t *testing.T) {
	server, _ := localAIServer(t)

	load := NewLocalAILoader(server.Client(), server.URL+"/v1")
	_, err := load(context.Background(), LoadParams{Model: "sdxl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed")
}

func TestAPIURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/v1", apiURL("http://localhost:8080"))
	assert.Equal(t, "http://localhost:8080/v1", apiURL("http://localhost:8080/"))
	assert.Equal(t, "http://localhost:8080/v1", apiURL("http://localhost:8080/v1/"))
}
