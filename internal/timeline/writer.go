package timeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteTimeline writes a timeline to a YAML file.
func WriteTimeline(t *Timeline, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Load reads a timeline from a YAML file and parses every beat's action
// list. Malformed entries fail here, with the offending beat id and action
// index, before any browser work begins.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Timeline
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i := range t.Beats {
		b := &t.Beats[i]
		b.Actions = make([]Action, 0, len(b.RawActions))
		for j, raw := range b.RawActions {
			act, err := ParseAction(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: beat %q action %d: %w", path, b.ID, j, err)
			}
			b.Actions = append(b.Actions, act)
		}
	}

	return &t, nil
}
