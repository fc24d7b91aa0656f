package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gofolio/internal/content"
	"gofolio/internal/logger"
	"gofolio/internal/model"
)

// seedItem is one content item in a seed file.
type seedItem struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Body        string   `yaml:"body"`
	Category    string   `yaml:"category"`
	Tags        []string `yaml:"tags"`
	Image       string   `yaml:"image"`
	Link        string   `yaml:"link"`
	Status      string   `yaml:"status"`
	Featured    bool     `yaml:"featured"`
}

func (s seedItem) item() (model.ContentItem, error) {
	status := model.StatusDraft
	if s.Status != "" {
		parsed, err := model.ParseStatus(s.Status)
		if err != nil {
			return model.ContentItem{}, err
		}
		status = parsed
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.ContentItem{
		Title:       s.Title,
		Description: s.Description,
		Body:        s.Body,
		Category:    s.Category,
		Tags:        tags,
		Image:       s.Image,
		Link:        s.Link,
		Status:      status,
		Featured:    s.Featured,
	}, nil
}

// seedFile maps a content kind slug ("projects", "blog", ...) to its items.
type seedFile map[string][]seedItem

func readSeedFile(path string) (seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// seedCatalog creates every item in seed and returns the number created.
// Kinds are validated before anything is written.
func seedCatalog(ctx context.Context, catalog *content.Catalog, seed seedFile) (int, error) {
	for slug := range seed {
		if _, ok := catalog.Content(slug); !ok {
			return 0, fmt.Errorf("unknown content kind %q", slug)
		}
	}

	created := 0
	for _, k := range catalog.Kinds() {
		for i, entry := range seed[k.Slug] {
			item, err := entry.item()
			if err != nil {
				return created, fmt.Errorf("%s[%d]: %w", k.Slug, i, err)
			}
			if item.Title == "" {
				return created, fmt.Errorf("%s[%d]: %w", k.Slug, i, content.ValidationError("title", "is required"))
			}
			if _, err := k.Repo.Create(ctx, item); err != nil {
				return created, fmt.Errorf("%s[%d]: %w", k.Slug, i, err)
			}
			created++
		}
	}
	return created, nil
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yml>",
	Short: "Load content items from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		seed, err := readSeedFile(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := NewApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := seedCatalog(ctx, app.Catalog, seed)
		if err != nil {
			return err
		}
		log.Info("Seed complete", logger.Int("created", n), logger.String("file", args[0]))
		return nil
	},
}
