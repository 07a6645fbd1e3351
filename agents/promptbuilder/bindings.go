/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// binding renders the value substituted for a placeholder.
type binding interface {
	render() (string, error)
}

type textBinding string

func (t textBinding) render() (string, error) { return string(t), nil }

type jsonBinding struct{ data any }

func (j jsonBinding) render() (string, error) {
	b, err := json.MarshalIndent(j.data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON: %w", err)
	}
	return string(b), nil
}

type yamlBinding struct{ data any }

func (y yamlBinding) render() (string, error) {
	b, err := yaml.Marshal(y.data)
	if err != nil {
		return "", fmt.Errorf("marshal YAML: %w", err)
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}
