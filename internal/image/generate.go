package image

import (
	"context"
	"errors"
)

var (
	ErrModelLoad  = errors.New("model load failed")
	ErrGeneration = errors.New("generation failed")
)

// Params are sent to the backend by name, never by position.
type Params struct {
	Model             string  `json:"model"`
	Prompt            string  `json:"prompt"`
	Height            int     `json:"height"`
	Width             int     `json:"width"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	MaxSequenceLength int     `json:"max_sequence_length"`
	Seed              int64   `json:"seed"`
}

type Image struct {
	Data     []byte
	MIMEType string
}

type Pipeline interface {
	Generate(context.Context, Params) ([]Image, error)
}

type LoadParams struct {
	Model string
	Token string
}

// Loader resolves a model once and returns a pipeline bound to it. It may
// block for a long time.
type Loader func(context.Context, LoadParams) (Pipeline, error)
