// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package catalog

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// SchemaID is the $id of the manifest schema, for use in plugin.yaml files.
const SchemaID = "https://smcverify.github.io/smcplug/schemas/plugin.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// GenerateSchema generates a JSON Schema from the Manifest struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
		FieldNameTag:   "yaml",
		Mapper:         mapExchangeValue,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "SMC Plugin Manifest"
	schema.Description = "Schema for plugin.yaml manifest files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("catalog").Hint("failed to marshal schema").Wrap(err)
	}
	return data, nil
}

// mapExchangeValue describes an exchange value as a number or a boolean.
func mapExchangeValue(t reflect.Type) *jsonschema.Schema {
	if t != reflect.TypeOf(exchange.Value{}) {
		return nil
	}
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "boolean"},
		},
	}
}

// ValidateSchema validates YAML data against the manifest JSON Schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.In("catalog").Code(CodeInvalidManifest).Errorf("manifest data is empty")
	}

	var yamlData any
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return oops.In("catalog").Code(CodeInvalidManifest).Hint("invalid YAML").Wrap(err)
	}

	// Round-trip through JSON so that the validator sees JSON types only.
	raw, err := json.Marshal(yamlData)
	if err != nil {
		return oops.In("catalog").Code(CodeInvalidManifest).Hint("manifest is not representable as JSON").Wrap(err)
	}
	instance, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return oops.In("catalog").Code(CodeInvalidManifest).Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := sch.Validate(instance); err != nil {
		return oops.In("catalog").
			Code(CodeInvalidManifest).
			Errorf("schema validation failed: %s", FormatSchemaError(err))
	}
	return nil
}

// compiledSchema compiles the generated schema once.
func compiledSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaBytes, err := GenerateSchema()
		if err != nil {
			schemaErr = err
			return
		}

		doc, err := jschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			schemaErr = oops.In("catalog").Hint("failed to parse schema JSON").Wrap(err)
			return
		}

		c := jschema.NewCompiler()
		if err := c.AddResource("schema.json", doc); err != nil {
			schemaErr = oops.In("catalog").Hint("failed to add schema resource").Wrap(err)
			return
		}
		schemaCompiled, schemaErr = c.Compile("schema.json")
		if schemaErr != nil {
			schemaErr = oops.In("catalog").Hint("failed to compile schema").Wrap(schemaErr)
		}
	})
	return schemaCompiled, schemaErr
}

// FormatSchemaError formats a schema validation error for display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	return strings.TrimPrefix(msg, "schema validation failed: ")
}
