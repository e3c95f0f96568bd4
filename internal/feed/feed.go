package feed

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/dmorgan81/fluxgen/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const FileName = "feed.xml"

// Generator builds an RSS feed with one item per generation directory under
// Root.
type Generator struct {
	Root string
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{Root: do.MustInvokeNamed[string](i, "output_dir")}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("feed").With("root", g.Root)
	logger.Info("generating rss feed")

	entries, err := os.ReadDir(g.Root)
	if err != nil {
		return nil, err
	}

	items := lo.FilterMap(entries, func(e os.DirEntry, _ int) (*feeds.Item, bool) {
		if !e.IsDir() {
			return nil, false
		}
		slug, created, ok := store.ParseDirName(e.Name())
		if !ok {
			return nil, false
		}
		return &feeds.Item{
			Title:   lo.Ternary(slug != "", strings.ReplaceAll(slug, "-", " "), "(empty prompt)"),
			Link:    &feeds.Link{Href: path.Join(e.Name(), "index.html")},
			Id:      e.Name(),
			Created: created,
			Updated: created,
		}, true
	})
	logger.Debug("found generations", "count", len(items))

	feed := feeds.Feed{
		Title:       "fluxgen",
		Description: "Generated images",
		Link:        &feeds.Link{Href: "./"},
		Items:       items,
		Updated:     time.Now(),
	}
	if len(items) > 0 {
		feed.Updated = latest(items)
	}
	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.Before(b.Updated)
	})

	rss, err := feed.ToRss()
	return []byte(rss), err
}

func latest(items []*feeds.Item) time.Time {
	return lo.MaxBy(items, func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	}).Updated
}
