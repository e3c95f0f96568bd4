package inject

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/fluxgen/internal/config"
	"github.com/dmorgan81/fluxgen/internal/feed"
	"github.com/dmorgan81/fluxgen/internal/handler"
	"github.com/dmorgan81/fluxgen/internal/image"
	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/dmorgan81/fluxgen/internal/page"
	"github.com/dmorgan81/fluxgen/internal/prompt"
	"github.com/dmorgan81/fluxgen/internal/store"
	"github.com/samber/do"
)

const (
	BackendHuggingFace = "huggingface"
	BackendLocalAI     = "localai"
)

type Options struct {
	Settings config.Settings
	// BaseDir holds config.json and the output directory.
	BaseDir string
	Stdin   io.Reader
	Stdout  io.Writer
}

func Setup(ctx context.Context, opts Options) *do.Injector {
	log := log.FromContextOrDiscard(ctx)
	settings := opts.Settings

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})

	do.ProvideValue[config.Settings](injector, settings)
	do.ProvideNamedValue[string](injector, "token", settings.Token)
	do.ProvideNamedValue[string](injector, "bucket", settings.Bucket)
	do.ProvideNamedValue[string](injector, "config_path", filepath.Join(opts.BaseDir, config.FileName))
	do.ProvideNamedValue[string](injector, "output_dir", filepath.Join(opts.BaseDir, "output"))
	do.ProvideNamedValue[io.Reader](injector, "stdin", opts.Stdin)
	do.ProvideNamedValue[io.Writer](injector, "stdout", opts.Stdout)

	do.Provide[config.Generation](injector, func(i *do.Injector) (config.Generation, error) {
		return config.Load(do.MustInvokeNamed[string](i, "config_path"))
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: settings.Timeout})
	do.Provide[image.Loader](injector, func(i *do.Injector) (image.Loader, error) {
		client := do.MustInvoke[*http.Client](i)
		switch settings.Backend {
		case BackendHuggingFace:
			return image.NewHuggingFaceLoader(client, settings.HubURL, settings.InferenceURL), nil
		case BackendLocalAI:
			return image.NewLocalAILoader(client, settings.LocalAIURL), nil
		}
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrConfig, settings.Backend)
	})

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideNamed[store.Uploader](injector, "mirror", store.NewS3Uploader)
	do.ProvideNamedValue[store.Uploader](injector, "local", &store.FileUploader{})

	do.ProvideValue[*page.Templator](injector, &page.Templator{})
	do.Provide[*feed.Generator](injector, feed.NewGenerator)
	do.Provide[*prompt.Reader](injector, prompt.NewConsoleReader)

	do.Provide[*handler.Handler](injector, func(i *do.Injector) (*handler.Handler, error) {
		// Config is resolved first so a bad config.json never reaches the loader.
		cfg, err := do.Invoke[config.Generation](i)
		if err != nil {
			return nil, err
		}
		loader, err := do.Invoke[image.Loader](i)
		if err != nil {
			return nil, err
		}

		opts := handler.Options{
			Config:    cfg,
			Token:     do.MustInvokeNamed[string](i, "token"),
			Loader:    loader,
			OutputDir: do.MustInvokeNamed[string](i, "output_dir"),
			Uploader:  do.MustInvokeNamed[store.Uploader](i, "local"),
			Console:   do.MustInvokeNamed[io.Writer](i, "stdout"),
		}
		if settings.Bucket != "" {
			if opts.Mirror, err = do.InvokeNamed[store.Uploader](i, "mirror"); err != nil {
				return nil, err
			}
		}
		if settings.Gallery {
			opts.Templator = do.MustInvoke[*page.Templator](i)
			opts.Feed = do.MustInvoke[*feed.Generator](i)
		}
		return handler.New(ctx, opts)
	})

	return injector
}
