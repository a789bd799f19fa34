package chain

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// LoadFixture reads a YAML chain fixture from path.
func LoadFixture(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chain fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML chain fixture.
func ParseFixture(data []byte) (*Static, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing chain fixture: %w", err)
	}
	for i, a := range f.Accounts {
		if a == nil || a.ID == "" {
			return nil, fmt.Errorf("parsing chain fixture: account %d has no id", i)
		}
	}
	return NewStatic(f), nil
}
