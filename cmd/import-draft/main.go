package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/debemdeboas/composer/internal/config"
	"github.com/debemdeboas/composer/internal/db"
	"github.com/debemdeboas/composer/internal/document"
	"github.com/debemdeboas/composer/internal/logger"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/render"
	"github.com/debemdeboas/composer/internal/repository/draft"
	"github.com/debemdeboas/composer/internal/util"
	"github.com/debemdeboas/composer/internal/util/compression"
)

// main imports markdown files as drafts, one new draft per file.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	path := flag.String("path", "", "markdown file or directory of .md files to import")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "--path is required")
		os.Exit(2)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	log := logger.New(cfg.Logging.Level)
	draft.SetLogger(log)

	if cfg.Store.Driver == "memory" {
		log.Warn().Msg("The memory store does not outlive this command; configure fs, sqlite or redis")
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open draft store")
	}

	engine, err := render.ParseEngine(cfg.Markdown.Renderer)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid markdown renderer")
	}
	renderer := render.New(engine)

	files, err := markdownFiles(*path)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("Failed to list markdown files")
	}

	for _, file := range files {
		id, err := importFile(context.Background(), store, renderer, file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("Import failed")
			continue
		}
		log.Info().Str("file", file).Str("draft_id", string(id)).Msg("Draft imported")
		fmt.Println(id)
	}
}

func openStore(cfg config.StoreConfig) (draft.Store, error) {
	opts := draft.Options{Dir: cfg.Path, RedisURL: cfg.RedisURL}
	if cfg.Driver == "sqlite" {
		compressor, err := compression.New(cfg.Compression)
		if err != nil {
			return nil, err
		}
		database := db.NewSQLite(cfg.Database)
		if err := database.InitDb(); err != nil {
			return nil, err
		}
		opts.DB = database
		opts.Compressor = compressor
	}
	return draft.New(cfg.Driver, opts)
}

func markdownFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

// importFile stores one markdown file as a new draft. The front matter title wins
// over the file name.
func importFile(ctx context.Context, store draft.Store, renderer *render.Renderer, file string) (model.DraftID, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	title := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if fm, err := util.GetFrontMatter(content); err == nil && fm.Title != "" {
		title = fm.Title
	}

	patch := draft.Patch{Title: &title}

	nodes, err := renderer.Fragment(string(content))
	switch {
	case err == nil:
		doc := document.NewDoc(nodes...)
		raw, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		patch.Body = &draft.Body{HTML: document.RenderHTML(doc), JSON: raw}
	case errors.Is(err, document.ErrEmptyFragment):
	default:
		return "", err
	}

	id := model.NewDraftID()
	if err := store.Save(ctx, id, patch); err != nil {
		return "", err
	}
	return id, nil
}
