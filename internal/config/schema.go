package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-papertrade/internal/types"
)

// Schema returns the JSON schema of the YAML config file, for editor completion.
func Schema() (string, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
		Mapper:         mapConfigType,
	}

	data, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// mapConfigType describes the types whose YAML form differs from their Go layout.
func mapConfigType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(types.Money{}):
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^-?[0-9]+(\.[0-9]+)?$`,
			Description: "Exact decimal amount in won",
		}
	case reflect.TypeOf(time.Duration(0)):
		return &jsonschema.Schema{
			Type:        "string",
			Description: "Go duration such as 200ms or 5s",
		}
	}

	return nil
}
