package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
)

// LocalAIPipeline talks to an OpenAI compatible images endpoint that also
// understands the LocalAI step and seed extensions.
type LocalAIPipeline struct {
	Client  *http.Client
	BaseURL string
	Model   string
	Token   string
}

type localAIRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Step           int    `json:"step"`
	Seed           int64  `json:"seed"`
	ResponseFormat string `json:"response_format"`
}

func NewLocalAILoader(client *http.Client, baseURL string) Loader {
	return func(ctx context.Context, params LoadParams) (Pipeline, error) {
		logger := log.FromContextOrDiscard(ctx).WithGroup("localai").With("model", params.Model)
		logger.Info("resolving model", "url", baseURL)

		cfg := openai.DefaultConfig(params.Token)
		cfg.BaseURL = apiURL(baseURL)
		cfg.HTTPClient = client

		models, err := openai.NewClientWithConfig(cfg).ListModels(ctx)
		if err != nil {
			return nil, err
		}
		if !lo.ContainsBy(models.Models, func(m openai.Model) bool { return m.ID == params.Model }) {
			return nil, fmt.Errorf("model %q is not installed on %s", params.Model, baseURL)
		}

		return &LocalAIPipeline{
			Client:  client,
			BaseURL: baseURL,
			Model:   params.Model,
			Token:   params.Token,
		}, nil
	}
}

func (p *LocalAIPipeline) Generate(ctx context.Context, params Params) ([]Image, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("localai").With("params", params)
	logger.Info("generating images via localai")

	body, err := json.Marshal(localAIRequest{
		Model:          lo.Ternary(params.Model != "", params.Model, p.Model),
		Prompt:         params.Prompt,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", params.Width, params.Height),
		Step:           params.NumInferenceSteps,
		Seed:           params.Seed,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(p.BaseURL)+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	authorize(req, p.Token)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out openai.ImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(out.Data))
	for i, d := range out.Data {
		if d.B64JSON == "" {
			return nil, fmt.Errorf("image %d has no b64_json payload", i)
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, Image{Data: data, MIMEType: http.DetectContentType(data)})
	}
	logger.Info("received images via localai", "count", len(images))

	return images, nil
}

func apiURL(baseURL string) string {
	return strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1") + "/v1"
}
