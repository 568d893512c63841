package storage

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "selection.schema.json"

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "outlinesEnabled": { "type": "boolean" },
    "defaultColor": { "$ref": "#/$defs/color" },
    "selectedItems": { "$ref": "#/$defs/selection" },
    "selectedEntities": { "$ref": "#/$defs/selection" },
    "selectedBlocks": { "$ref": "#/$defs/selection" }
  },
  "$defs": {
    "color": {
      "type": "integer",
      "minimum": -2147483648,
      "maximum": 4294967295
    },
    "selection": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": "object",
        "properties": {
          "enabled": { "type": "boolean" },
          "color": { "$ref": "#/$defs/color" }
        }
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}
