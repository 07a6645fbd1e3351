/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package settings

import "github.com/invopop/jsonschema"

// JSONSchema describes the typed settings, keyed by their TOML names, so
// editors can validate .pr_agent.toml files.
func JSONSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		FieldNameTag:              "toml",
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	return r.Reflect(&Settings{})
}
