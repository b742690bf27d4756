package captioner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCatalog = errors.New("caption catalog has no captions")
)

var defaultCaptions = []string{
	"A cat sitting on a couch.",
	"A happy dog running in the park.",
	"A sleepy cat lounging in the sun.",
	"A puppy playing with a ball.",
	"A dog waiting by the door.",
}

/*
Catalog is the fixed, ordered list of captions the service rotates
through. Index n always maps to captions[n mod len].
*/
type Catalog struct {
	captions []string
}

type catalogFile struct {
	Captions []string `yaml:"captions"`
}

func NewCatalog(captions []string) (Catalog, error) {
	cleaned := make([]string, 0, len(captions))

	for _, c := range captions {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}

	if len(cleaned) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}

	return Catalog{captions: cleaned}, nil
}

func DefaultCatalog() Catalog {
	c, _ := NewCatalog(defaultCaptions)
	return c
}

// LoadCatalog reads a YAML file with a top level "captions" list.
func LoadCatalog(path string) (Catalog, error) {
	var (
		err  error
		b    []byte
		file catalogFile
	)

	if b, err = os.ReadFile(path); err != nil {
		return Catalog{}, fmt.Errorf("error reading caption file '%s': %w", path, err)
	}

	if err = yaml.Unmarshal(b, &file); err != nil {
		return Catalog{}, fmt.Errorf("error parsing caption file '%s': %w", path, err)
	}

	return NewCatalog(file.Captions)
}

func (c Catalog) Len() int {
	return len(c.captions)
}

// Index folds any integer, negative ones included, into the catalog range.
func (c Catalog) Index(n int) int {
	if len(c.captions) == 0 {
		return 0
	}

	i := n % len(c.captions)

	if i < 0 {
		i += len(c.captions)
	}

	return i
}

func (c Catalog) At(n int) models.CaptionResult {
	if len(c.captions) == 0 {
		return models.CaptionResult{}
	}

	i := c.Index(n)

	return models.CaptionResult{
		Caption: c.captions[i],
		Index:   i,
	}
}

// Next returns the caption after current, wrapping to the first one at the end.
func (c Catalog) Next(current int) models.CaptionResult {
	if current >= len(c.captions)-1 || current < -1 {
		return c.At(0)
	}

	return c.At(current + 1)
}
