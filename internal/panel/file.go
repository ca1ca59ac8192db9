// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package panel

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/consensus-engine/pkg/types"
)

// panelFile is the on-disk shape of a panel configuration.
type panelFile struct {
	Panel []types.PanelEntry `yaml:"panel"`
}

// LoadFile reads a YAML panel file of the form:
//
//	panel:
//	  - provider: anthropic
//	    model: claude-sonnet-4-5
//	    key: anthropic-api-key
//	    role: synthesizer
//
// Entries are validated lazily by Select.
func LoadFile(path string) ([]types.PanelEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading panel file: %w", err)
	}
	var f panelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing panel file: %w", err)
	}
	if len(f.Panel) == 0 {
		return nil, fmt.Errorf("panel file %s contains no entries", path)
	}
	return f.Panel, nil
}
