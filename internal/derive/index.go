package derive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Conversion is one result of the external converter for a source URL.
type Conversion struct {
	URL      string         `yaml:"url"`
	Output   string         `yaml:"output"`
	Type     string         `yaml:"type,omitempty"`
	Success  bool           `yaml:"success"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Transclusion describes a page that embeds a source URL.
type Transclusion struct {
	URL          string `yaml:"url"`
	Timestamp    Scalar `yaml:"timestamp,omitempty"`
	Selector     string `yaml:"selector,omitempty"`
	MetadataFile string `yaml:"metadata_file,omitempty"`
}

// Scalar keeps the literal text of a YAML scalar, so numeric timestamps
// like 20170101120000 are not reformatted.
type Scalar string

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(node.Value)
	return nil
}

// ConversionIndex maps source URLs to their conversion results. It is
// read-only after loading.
type ConversionIndex struct {
	Conversions map[string][]Conversion `yaml:"conversions"`
}

// Lookup returns the conversions recorded for url, in file order.
func (c *ConversionIndex) Lookup(url string) []Conversion {
	if c == nil {
		return nil
	}
	return c.Conversions[url]
}

// TransclusionIndex maps embedded URLs to the pages embedding them.
type TransclusionIndex struct {
	Transclusions map[string][]Transclusion `yaml:"transclusions"`
}

// Lookup returns the transclusions recorded for url, in file order.
func (t *TransclusionIndex) Lookup(url string) []Transclusion {
	if t == nil {
		return nil
	}
	return t.Transclusions[url]
}

// LoadConversions reads a conversion results file (YAML, JSON or JSONC).
func LoadConversions(path string) (*ConversionIndex, error) {
	var idx ConversionIndex
	if err := loadIndex(path, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// LoadTransclusions reads a transclusion file (YAML, JSON or JSONC).
func LoadTransclusions(path string) (*TransclusionIndex, error) {
	var idx TransclusionIndex
	if err := loadIndex(path, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// loadIndex decodes path into out. JSON files have comments and trailing
// commas stripped first; the result is valid YAML.
func loadIndex(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
		if !json.Valid(data) {
			return fmt.Errorf("%s: invalid JSON", path)
		}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
