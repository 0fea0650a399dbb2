package feed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed topics.yaml
var defaultCatalogYAML []byte

type Topic struct {
	Name  string   `yaml:"name"`
	Feeds []string `yaml:"feeds"`
}

// Catalog maps topic names to feed URLs. It is read-only once built.
type Catalog struct {
	topics []Topic
	index  map[string]int
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	c := &Catalog{index: make(map[string]int, len(doc.Topics))}

	for _, t := range doc.Topics {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			return nil, errors.New("topic name is empty")
		}
		if _, ok := c.index[name]; ok {
			return nil, fmt.Errorf("duplicate topic %q", name)
		}

		var feeds []string
		for _, f := range t.Feeds {
			if f = strings.TrimSpace(f); f != "" {
				feeds = append(feeds, f)
			}
		}

		c.index[name] = len(c.topics)
		c.topics = append(c.topics, Topic{Name: name, Feeds: feeds})
	}

	if len(c.topics) == 0 {
		return nil, errors.New("catalog has no topics")
	}

	return c, nil
}

// LoadCatalog reads a catalog file, or returns the embedded catalog when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return ParseCatalog(defaultCatalogYAML)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	return ParseCatalog(data)
}

// Names lists topics in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.topics))
	for _, t := range c.topics {
		names = append(names, t.Name)
	}

	return names
}

// Feeds looks topic up case-insensitively. Unknown topics have no feeds.
func (c *Catalog) Feeds(topic string) []string {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(topic))]
	if !ok {
		return nil
	}

	return slices.Clone(c.topics[i].Feeds)
}

func (c *Catalog) Has(topic string) bool {
	_, ok := c.index[strings.ToLower(strings.TrimSpace(topic))]
	return ok
}
