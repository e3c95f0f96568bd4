package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/samber/lo"
)

const textToImage = "text-to-image"

type HuggingFacePipeline struct {
	Client       *http.Client
	InferenceURL string
	Model        string
	Token        string
}

type huggingFaceModel struct {
	ID          string `json:"id"`
	PipelineTag string `json:"pipeline_tag"`
	Private     bool   `json:"private"`
	Gated       any    `json:"gated"`
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	Height            int     `json:"height"`
	Width             int     `json:"width"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	MaxSequenceLength int     `json:"max_sequence_length"`
	Seed              int64   `json:"seed"`
}

// NewHuggingFaceLoader resolves models against the hub at hubURL and runs
// them on the inference endpoint at inferenceURL.
func NewHuggingFaceLoader(client *http.Client, hubURL, inferenceURL string) Loader {
	return func(ctx context.Context, params LoadParams) (Pipeline, error) {
		logger := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With("model", params.Model)
		logger.Info("resolving model", "hub", hubURL)

		endpoint := strings.TrimSuffix(hubURL, "/") + "/api/models/" + escapeModel(params.Model)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		authorize(req, params.Token)

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			return nil, fmt.Errorf("model %q: %w", params.Model, err)
		}

		var model huggingFaceModel
		if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
			return nil, fmt.Errorf("model %q: %w", params.Model, err)
		}
		if model.PipelineTag != "" && model.PipelineTag != textToImage {
			return nil, fmt.Errorf("model %q is a %s model, not %s", params.Model, model.PipelineTag, textToImage)
		}
		logger.Info("resolved model", "id", model.ID, "private", model.Private, "gated", model.Gated)

		return &HuggingFacePipeline{
			Client:       client,
			InferenceURL: inferenceURL,
			Model:        params.Model,
			Token:        params.Token,
		}, nil
	}
}

func (p *HuggingFacePipeline) Generate(ctx context.Context, params Params) ([]Image, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With("params", params)
	logger.Info("generating image via inference api")

	body, err := json.Marshal(huggingFaceRequest{
		Inputs: params.Prompt,
		Parameters: huggingFaceParameters{
			Height:            params.Height,
			Width:             params.Width,
			GuidanceScale:     params.GuidanceScale,
			NumInferenceSteps: params.NumInferenceSteps,
			MaxSequenceLength: params.MaxSequenceLength,
			Seed:              params.Seed,
		},
	})
	if err != nil {
		return nil, err
	}

	model := lo.Ternary(params.Model != "", params.Model, p.Model)
	endpoint := strings.TrimSuffix(p.InferenceURL, "/") + "/models/" + escapeModel(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	authorize(req, p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	mime := resp.Header.Get("Content-Type")
	logger.Info("received image via inference api", "content-type", mime, "bytes", len(data))

	return []Image{{Data: data, MIMEType: mime}}, nil
}

func escapeModel(model string) string {
	parts := strings.Split(model, "/")
	return strings.Join(lo.Map(parts, func(p string, _ int) string {
		return url.PathEscape(p)
	}), "/")
}

func authorize(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// checkStatus turns a non-2xx response into an error carrying the backend's
// message when it sent one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != nil {
		switch e := body.Error.(type) {
		case string:
			return fmt.Errorf("%s: %s", resp.Status, e)
		case map[string]any:
			if msg, ok := e["message"].(string); ok {
				return fmt.Errorf("%s: %s", resp.Status, msg)
			}
		}
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("%s: %s", resp.Status, msg)
	}
	return fmt.Errorf("%s", resp.Status)
}
