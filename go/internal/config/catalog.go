package config

import (
	"fmt"
	"os"

	"github.com/mcdev12/crowddrop/go/internal/models"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Items []models.Item `yaml:"items"`
}

// LoadCatalog reads the item catalog from a YAML file. Order in the file is
// the order the game uses. An empty path gives the built-in catalog.
func LoadCatalog(path string) (*models.Catalog, error) {
	if path == "" {
		return models.NewCatalog(models.DefaultItems())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	catalog, err := models.NewCatalog(file.Items)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return catalog, nil
}
