package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Rrens/formvault/internal/schema"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadStructure reads a field structure from a YAML or JSON file. Unknown
// keys are rejected so a misspelt attribute does not pass silently.
func loadStructure(path string) (schema.Structure, error) {
	var s schema.Structure

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read structure: %w", err)
	}

	if isJSON(path) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&s)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&s)
	}
	if err != nil {
		return s, fmt.Errorf("failed to parse structure %s: %w", path, err)
	}

	log.Debug().Str("path", path).Int("fields", len(s.Fields)).Int("groups", len(s.Groups)).Msg("Loaded structure")
	return s, nil
}

// loadValues reads record values from a YAML or JSON file. JSON numbers are
// kept as json.Number, matching what the server decodes.
func loadValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var values map[string]any
	if isJSON(path) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&values)
	} else {
		err = yaml.Unmarshal(data, &values)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse record %s: %w", path, err)
	}
	if values == nil {
		values = map[string]any{}
	}

	log.Debug().Str("path", path).Int("keys", len(values)).Msg("Loaded record")
	return values, nil
}
