package options

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/flowkit/errors"
)

// JSONSchema renders the description as a JSON Schema document. Resolver
// front-ends use it to validate map-form option values before construction.
func (d *Description) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Members))
	required := []string{}

	for _, member := range d.Members {
		properties[member.Name] = memberSchema(&member)
		if member.Required {
			required = append(required, member.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func memberSchema(member *MemberDescription) map[string]any {
	var value map[string]any

	switch member.DataType {
	case DataTypeBoolean:
		value = map[string]any{"type": "boolean"}
	case DataTypeByte:
		value = map[string]any{"type": "integer", "minimum": 0, "maximum": 255}
	case DataTypeInt:
		value = map[string]any{"anyOf": []any{
			map[string]any{"type": "integer"},
			rangeObjectSchema("integer"),
		}}
	case DataTypeFloat:
		value = map[string]any{"anyOf": []any{
			map[string]any{"type": "number"},
			rangeObjectSchema("number"),
		}}
	case DataTypeString:
		value = map[string]any{"type": "string"}
	case DataTypeRGB, DataTypeDirectionVector:
		// pipe-joined channel/axis form, same as the strv syntax
		value = map[string]any{"type": "string"}
	default:
		value = map[string]any{}
	}

	if member.Description != "" {
		value["description"] = member.Description
	}
	return value
}

func rangeObjectSchema(numberType string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{"type": numberType},
			"min":   map[string]any{"type": numberType},
			"max":   map[string]any{"type": numberType},
			"step":  map[string]any{"type": numberType},
		},
		"required":             []string{"value"},
		"additionalProperties": false,
	}
}

// StrvFromJSON converts a JSON object of member values into strv entries,
// validating each value's shape against the schema. Required members are
// not enforced here; callers may still merge further entries before
// constructing a bag.
func StrvFromJSON(desc *Description, raw json.RawMessage) ([]string, error) {
	if desc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Options", "StrvFromJSON",
			"nil description")
	}

	schema := desc.JSONSchema()
	delete(schema, "required")

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Options", "StrvFromJSON", "schema validation")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "StrvFromJSON",
			fmt.Sprintf("schema violation: %s", first.String()))
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.WrapInvalid(err, "Options", "StrvFromJSON", "object decoding")
	}

	strv := make([]string, 0, len(values))
	for name, rawValue := range values {
		member := desc.member(name)
		if member == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "StrvFromJSON",
				fmt.Sprintf("unknown option %q", name))
		}
		entry, err := jsonValueToStrv(member, rawValue)
		if err != nil {
			return nil, err
		}
		strv = append(strv, name+"="+entry)
	}
	return strv, nil
}

// NewFromJSON builds a Bag from a JSON object validated against the
// description's schema. The strv parser does the final coercion and bounds
// checking, so JSON and strv construction stay in agreement.
func NewFromJSON(desc *Description, raw json.RawMessage) (*Bag, error) {
	strv, err := StrvFromJSON(desc, raw)
	if err != nil {
		return nil, err
	}
	return NewFromStrv(desc, strv)
}

func jsonValueToStrv(member *MemberDescription, raw json.RawMessage) (string, error) {
	switch member.DataType {
	case DataTypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.WrapInvalid(err, "Options", "NewFromJSON", "string decoding")
		}
		return s, nil

	case DataTypeInt, DataTypeFloat:
		var obj struct {
			Value *float64 `json:"value"`
			Min   *float64 `json:"min"`
			Max   *float64 `json:"max"`
			Step  *float64 `json:"step"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
			if obj.Min != nil && obj.Max != nil && obj.Step != nil {
				return fmt.Sprintf("%s|%s|%s|%s",
					formatFloat(*obj.Value), formatFloat(*obj.Min),
					formatFloat(*obj.Max), formatFloat(*obj.Step)), nil
			}
			return formatFloat(*obj.Value), nil
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", errors.WrapInvalid(err, "Options", "NewFromJSON", "number decoding")
		}
		return formatFloat(n), nil

	case DataTypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", errors.WrapInvalid(err, "Options", "NewFromJSON", "boolean decoding")
		}
		return strconv.FormatBool(b), nil

	case DataTypeByte:
		var n uint8
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", errors.WrapInvalid(err, "Options", "NewFromJSON", "byte decoding")
		}
		return strconv.FormatUint(uint64(n), 10), nil

	default:
		// rgb and direction-vector arrive as pipe-joined strings in
		// JSON form as well.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromJSON",
				fmt.Sprintf("member %q: unsupported JSON form", member.Name))
		}
		return s, nil
	}
}
