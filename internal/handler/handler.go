package handler

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmorgan81/fluxgen/internal/config"
	"github.com/dmorgan81/fluxgen/internal/feed"
	"github.com/dmorgan81/fluxgen/internal/image"
	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/dmorgan81/fluxgen/internal/page"
	"github.com/dmorgan81/fluxgen/internal/store"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Seed is fixed so the same model, config and prompt always render the same
// pixels.
const Seed int64 = 0

type Input struct {
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
}

type Output struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

type Options struct {
	Config    config.Generation
	Token     string
	Loader    image.Loader
	OutputDir string

	// Uploader writes files locally. Defaults to store.FileUploader.
	Uploader store.Uploader
	// Mirror, if set, receives a copy of every file keyed by
	// <directory>/<file>.
	Mirror store.Uploader
	// Templator and Feed, if both set, add index.html to each output
	// directory and refresh feed.xml in OutputDir.
	Templator *page.Templator
	Feed      *feed.Generator

	Console io.Writer
	Now     func() time.Time
}

type Handler struct {
	cfg       config.Generation
	pipeline  image.Pipeline
	outputDir string
	uploader  store.Uploader
	mirror    store.Uploader
	templator *page.Templator
	feed      *feed.Generator
	console   io.Writer
	now       func() time.Time
}

// New loads the pipeline. It blocks until the backend has resolved the model.
func New(ctx context.Context, opts Options) (*Handler, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("handler").With("model", opts.Config.Model)
	logger.Info("loading pipeline")

	pipeline, err := opts.Loader(ctx, image.LoadParams{Model: opts.Config.Model, Token: opts.Token})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", image.ErrModelLoad, err)
	}
	logger.Info("pipeline loaded")

	h := &Handler{
		cfg:       opts.Config,
		pipeline:  pipeline,
		outputDir: opts.OutputDir,
		uploader:  opts.Uploader,
		mirror:    opts.Mirror,
		templator: opts.Templator,
		feed:      opts.Feed,
		console:   opts.Console,
		now:       opts.Now,
	}
	if h.uploader == nil {
		h.uploader = &store.FileUploader{}
	}
	if h.console == nil {
		h.console = io.Discard
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

func (h *Handler) params(prompt string) image.Params {
	return image.Params{
		Model:             h.cfg.Model,
		Prompt:            prompt,
		Height:            h.cfg.Height,
		Width:             h.cfg.Width,
		GuidanceScale:     h.cfg.GuidanceScale,
		NumInferenceSteps: h.cfg.NumInferenceSteps,
		MaxSequenceLength: h.cfg.MaxSequenceLength,
		Seed:              Seed,
	}
}

func (h *Handler) metadata(prompt, created string) map[string]string {
	return map[string]string{
		"prompt":  url.QueryEscape(prompt),
		"model":   h.cfg.Model,
		"seed":    strconv.FormatInt(Seed, 10),
		"created": created,
	}
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("handler").With("input", input)
	logger.Info("handling generation request")

	format := lo.Ternary(input.Format != "", input.Format, image.DefaultFormat)
	if !image.Supported(format) {
		return Output{}, fmt.Errorf("%w: %q", image.ErrFormat, format)
	}

	fmt.Fprintf(h.console, "Generating images for: \"%s\"...\n", input.Prompt)

	images, err := h.pipeline.Generate(ctx, h.params(input.Prompt))
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", image.ErrGeneration, err)
	}
	logger.Info("pipeline returned images", "count", len(images))

	created := h.now()
	name := store.DirName(input.Prompt, created)
	dir := filepath.Join(h.outputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Output{}, fmt.Errorf("%w: %w", store.ErrIO, err)
	}

	metadata := h.metadata(input.Prompt, created.Format(time.RFC3339))
	uploads := make([]store.UploadParams, 0, len(images)+1)
	files := make([]string, 0, len(images))

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetWriter(h.console),
		progressbar.OptionSetDescription("writing images"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	for i, img := range images {
		file := fmt.Sprintf("%d.%s", i, format)
		data, err := image.Encode(img, format)
		if err != nil {
			return Output{}, fmt.Errorf("%w: %s: %w", store.ErrIO, file, err)
		}

		u := store.UploadParams{
			Name:        file,
			Data:        data,
			ContentType: image.ContentType(format),
			Metadata:    metadata,
		}
		if err := h.write(ctx, dir, u); err != nil {
			return Output{}, err
		}
		uploads = append(uploads, u)
		files = append(files, file)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if h.templator != nil && h.feed != nil {
		index, err := h.gallery(ctx, dir, input.Prompt, created, files, metadata)
		if err != nil {
			return Output{}, err
		}
		uploads = append(uploads, index)
	}

	if h.mirror != nil {
		if err := h.mirrorAll(ctx, name, uploads); err != nil {
			return Output{}, err
		}
	}

	fmt.Fprintln(h.console, "DONE")
	logger.Info("wrote images", "dir", dir, "files", files)

	return Output{Dir: dir, Files: files}, nil
}

func (h *Handler) write(ctx context.Context, dir string, u store.UploadParams) error {
	u.Name = filepath.Join(dir, u.Name)
	if err := h.uploader.Upload(ctx, u); err != nil {
		return fmt.Errorf("%w: %w", store.ErrIO, err)
	}
	return nil
}

func (h *Handler) gallery(ctx context.Context, dir, prompt string, created time.Time, files []string, metadata map[string]string) (store.UploadParams, error) {
	html, err := h.templator.Template(ctx, page.Params{
		Prompt:        prompt,
		Model:         h.cfg.Model,
		Created:       created.Format(time.DateTime),
		Width:         h.cfg.Width,
		Height:        h.cfg.Height,
		GuidanceScale: h.cfg.GuidanceScale,
		Steps:         h.cfg.NumInferenceSteps,
		Seed:          Seed,
		Images:        files,
	})
	if err != nil {
		return store.UploadParams{}, err
	}

	index := store.UploadParams{
		Name:        "index.html",
		Data:        html,
		ContentType: "text/html",
		Metadata:    metadata,
	}
	if err := h.write(ctx, dir, index); err != nil {
		return store.UploadParams{}, err
	}

	rss, err := h.feed.Generate(ctx)
	if err != nil {
		return store.UploadParams{}, fmt.Errorf("%w: %w", store.ErrIO, err)
	}
	if err := h.write(ctx, h.outputDir, store.UploadParams{
		Name:        feed.FileName,
		Data:        rss,
		ContentType: "application/rss+xml",
	}); err != nil {
		return store.UploadParams{}, err
	}
	return index, nil
}

func (h *Handler) mirrorAll(ctx context.Context, name string, uploads []store.UploadParams) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, u := range uploads {
		u := u
		u.Name = path.Join(name, u.Name)
		group.Go(func() error {
			return h.mirror.Upload(ctx, u)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrIO, err)
	}
	return nil
}
