package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceLoadAndGenerate(t *testing.T) {
	img := []byte("png bytes")
	var body huggingFaceRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/black-forest-labs/FLUX.1-dev", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer hf_token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id": "black-forest-labs/FLUX.1-dev", "pipeline_tag": "text-to-image", "gated": "auto"}`))
	})
	mux.HandleFunc("/models/black-forest-labs/FLUX.1-dev", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer hf_token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	load := NewHuggingFaceLoader(server.Client(), server.URL, server.URL)
	pipeline, err := load(context.Background(), LoadParams{Model: "black-forest-labs/FLUX.1-dev", Token: "hf_token"})
	require.NoError(t, err)

	images, err := pipeline.Generate(context.Background(), Params{
		Prompt:            "A red fox",
		Height:            512,
		Width:             768,
		GuidanceScale:     3.5,
		NumInferenceSteps: 20,
		MaxSequenceLength: 256,
	})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, img, images[0].Data)
	assert.Equal(t, "image/png", images[0].MIMEType)

	assert.Equal(t, huggingFaceRequest{
		Inputs: "A red fox",
		Parameters: huggingFaceParameters{
			Height:            512,
			Width:             768,
			GuidanceScale:     3.5,
			NumInferenceSteps: 20,
			MaxSequenceLength: 256,
			Seed:              0,
		},
	}, body)
}

func TestHuggingFaceLoadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid credentials in Authorization header"}`))
	}))
	defer server.Close()

	load := NewHuggingFaceLoader(server.Client(), server.URL, server.URL)
	_, err := load(context.Background(), LoadParams{Model: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 Unauthorized: Invalid credentials")
}

func TestHuggingFaceLoadWrongPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "gpt2", "pipeline_tag": "text-generation"}`))
	}))
	defer server.Close()

	load := NewHuggingFaceLoader(server.Client(), server.URL, server.URL)
	_, err := load(context.Background(), LoadParams{Model: "gpt2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text-generation")
}

func TestHuggingFaceGenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "prompt is too long"}`))
	}))
	defer server.Close()

	pipeline := &HuggingFacePipeline{Client: server.Client(), InferenceURL: server.URL, Model: "m"}
	_, err := pipeline.Generate(context.Background(), Params{Prompt: "long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is too long")
}

func TestCheckStatusPlainBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusServiceUnavailable)
	_, _ = rec.WriteString("model is loading\n")

	err := checkStatus(rec.Result())
	require.Error(t, err)
	assert.Equal(t, "503 Service Unavailable: model is loading", err.Error())
}
