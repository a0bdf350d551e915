// Package catalog holds the read-only product list that the voice
// interpreter reads aloud. A default list is embedded in the binary; a YAML
// file with the same shape can replace it through configuration.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var embedded []byte

// Product is one catalog entry.
type Product struct {
	ID       string  `yaml:"id"       json:"id"`
	Name     string  `yaml:"name"     json:"name"`
	Price    float64 `yaml:"price"    json:"price"`
	Category string  `yaml:"category" json:"category"`
}

type document struct {
	Products []Product `yaml:"products"`
}

// Default returns the embedded product list.
func Default() []Product {
	ps, err := Load(bytes.NewReader(embedded))
	if err != nil {
		panic("catalog: embedded products are invalid: " + err.Error())
	}
	return ps
}

// LoadFile reads a product list from a YAML file.
func LoadFile(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()
	ps, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: %q: %w", path, err)
	}
	return ps, nil
}

// Load decodes and validates a product list. Unknown keys are rejected.
func Load(r io.Reader) ([]Product, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog: empty document")
		}
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := validate(doc.Products); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func validate(ps []Product) error {
	var errs []error
	seen := make(map[string]int, len(ps))
	for i, p := range ps {
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, fmt.Errorf("catalog: products[%d]: id is required", i))
		case seen[p.ID] > 0:
			errs = append(errs, fmt.Errorf("catalog: products[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID]++
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("catalog: products[%d]: name is required", i))
		}
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("catalog: products[%d]: price must not be negative", i))
		}
	}
	return errors.Join(errs...)
}
