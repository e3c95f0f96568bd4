package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/samber/lo"
)

const FileName = "config.json"

var ErrConfig = errors.New("invalid configuration")

// Generation holds the values handed to the pipeline on every call.
type Generation struct {
	Model             string  `json:"model"`
	Height            int     `json:"height"`
	Width             int     `json:"width"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	MaxSequenceLength int     `json:"max_sequence_length"`
}

type document struct {
	Model             *string  `json:"model"`
	Height            *int     `json:"height"`
	Width             *int     `json:"width"`
	GuidanceScale     *float64 `json:"guidance_scale"`
	NumInferenceSteps *int     `json:"num_inference_steps"`
	MaxSequenceLength *int     `json:"max_sequence_length"`
}

func (d document) missing() []string {
	fields := []lo.Tuple2[string, bool]{
		lo.T2("model", d.Model == nil),
		lo.T2("height", d.Height == nil),
		lo.T2("width", d.Width == nil),
		lo.T2("guidance_scale", d.GuidanceScale == nil),
		lo.T2("num_inference_steps", d.NumInferenceSteps == nil),
		lo.T2("max_sequence_length", d.MaxSequenceLength == nil),
	}
	return lo.FilterMap(fields, func(f lo.Tuple2[string, bool], _ int) (string, bool) {
		return f.A, f.B
	})
}

// Load reads the generation document at path. Every field is required.
func Load(path string) (Generation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Generation{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Generation{}, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	if missing := doc.missing(); len(missing) > 0 {
		return Generation{}, fmt.Errorf("%w: %s: missing %s", ErrConfig, path, strings.Join(missing, ", "))
	}

	return Generation{
		Model:             *doc.Model,
		Height:            *doc.Height,
		Width:             *doc.Width,
		GuidanceScale:     *doc.GuidanceScale,
		NumInferenceSteps: *doc.NumInferenceSteps,
		MaxSequenceLength: *doc.MaxSequenceLength,
	}, nil
}

// Settings is read from FLUX_* environment variables.
type Settings struct {
	Token        string        `envconfig:"FLUX_TOKEN"`
	Home         string        `envconfig:"FLUX_HOME"`
	Backend      string        `envconfig:"FLUX_BACKEND" default:"huggingface"`
	HubURL       string        `envconfig:"FLUX_HUB_URL" default:"https://huggingface.co"`
	InferenceURL string        `envconfig:"FLUX_INFERENCE_URL" default:"https://router.huggingface.co/hf-inference"`
	LocalAIURL   string        `envconfig:"FLUX_LOCALAI_URL" default:"http://localhost:8080"`
	Timeout      time.Duration `envconfig:"FLUX_TIMEOUT" default:"10m"`
	Bucket       string        `envconfig:"FLUX_BUCKET"`
	Gallery      bool          `envconfig:"FLUX_GALLERY" default:"false"`
	LogLevel     string        `envconfig:"FLUX_LOG_LEVEL" default:"info"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return s, nil
}
