// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportFormat selects the session export encoding.
type ExportFormat string

const (
	ExportYAML ExportFormat = "yaml"
	ExportJSON ExportFormat = "json"
)

// Export is a session together with its transition history.
type Export struct {
	Session `yaml:",inline"`
	History []Transition `json:"history" yaml:"history"`
}

// Export collects session id and its history.
func (m *Manager) Export(ctx context.Context, id string) (Export, error) {
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return Export{}, err
	}
	hist, err := m.store.History(ctx, id)
	if err != nil {
		return Export{}, err
	}
	if hist == nil {
		hist = []Transition{}
	}
	return Export{Session: sess, History: hist}, nil
}

// WriteExport encodes e to w as YAML or JSON.
func WriteExport(w io.Writer, e Export, format ExportFormat) error {
	var data []byte
	var err error
	switch format {
	case ExportYAML, "":
		data, err = yaml.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case ExportJSON:
		data, err = json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
	_, err = w.Write(data)
	return err
}
