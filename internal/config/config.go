package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/diging/vogon-web-sub000/pkg/relations"
)

const defaultConceptCacheSize = 256

// Concept is a well-known concept as written in the concepts file.
type Concept struct {
	URI   string `yaml:"uri"`
	Label string `yaml:"label"`
}

// WellKnownConcepts are the concepts predicates are bound to when a template
// uses IS, HAS or a temporal dimension.
type WellKnownConcepts struct {
	Is    Concept `yaml:"is"`
	Has   Concept `yaml:"has"`
	Start Concept `yaml:"start"`
	End   Concept `yaml:"end"`
	Occur Concept `yaml:"occur"`
}

// DefaultConcepts is used for every entry the concepts file leaves out.
// Deployments bound to a concept authority should override the URIs.
var DefaultConcepts = WellKnownConcepts{
	Is:    Concept{URI: "http://www.digitalhps.org/concepts/be", Label: "be"},
	Has:   Concept{URI: "http://www.digitalhps.org/concepts/have", Label: "have"},
	Start: Concept{URI: "http://www.digitalhps.org/concepts/start", Label: "start"},
	End:   Concept{URI: "http://www.digitalhps.org/concepts/end", Label: "end"},
	Occur: Concept{URI: "http://www.digitalhps.org/concepts/occur", Label: "occur"},
}

type Config struct {
	DBPath           string
	ConceptsFile     string
	ConceptCacheSize int
	Concepts         WellKnownConcepts
}

// Load loads configuration from environment variables with defaults. A .env
// file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ConceptsFile:     strings.TrimSpace(os.Getenv("VOGON_CONCEPTS_FILE")),
		ConceptCacheSize: defaultConceptCacheSize,
		Concepts:         DefaultConcepts,
	}

	// Database path configuration
	cfg.DBPath = os.Getenv("VOGON_DB_PATH")
	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = filepath.Join(homeDir, ".vogon", "relations.db")
	}

	// Ensure the directory exists
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	if v := strings.TrimSpace(os.Getenv("VOGON_CONCEPT_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("VOGON_CONCEPT_CACHE_SIZE must be a positive integer, got %q", v)
		}
		cfg.ConceptCacheSize = n
	}

	if cfg.ConceptsFile != "" {
		concepts, err := LoadConcepts(cfg.ConceptsFile)
		if err != nil {
			return nil, err
		}
		cfg.Concepts = concepts
	}

	return cfg, nil
}

// LoadConcepts reads a YAML concepts file. Entries it leaves out keep their
// defaults; an entry with a URI but no label gets the default label.
func LoadConcepts(path string) (WellKnownConcepts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WellKnownConcepts{}, fmt.Errorf("read concepts file: %w", err)
	}

	var file WellKnownConcepts
	if err := yaml.Unmarshal(data, &file); err != nil {
		return WellKnownConcepts{}, fmt.Errorf("parse concepts file %s: %w", path, err)
	}

	out := DefaultConcepts
	merge(&out.Is, file.Is)
	merge(&out.Has, file.Has)
	merge(&out.Start, file.Start)
	merge(&out.End, file.End)
	merge(&out.Occur, file.Occur)
	return out, nil
}

func merge(dst *Concept, src Concept) {
	if src.URI != "" {
		dst.URI = src.URI
	}
	if src.Label != "" {
		dst.Label = src.Label
	}
}

// RelationConcepts converts the configured concepts for the relations engine.
func (c *Config) RelationConcepts() relations.Concepts {
	spec := func(x Concept) relations.ConceptSpec {
		return relations.ConceptSpec{URI: x.URI, Label: x.Label}
	}
	return relations.Concepts{
		Is:    spec(c.Concepts.Is),
		Has:   spec(c.Concepts.Has),
		Start: spec(c.Concepts.Start),
		End:   spec(c.Concepts.End),
		Occur: spec(c.Concepts.Occur),
	}
}
