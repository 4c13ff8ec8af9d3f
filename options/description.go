package options

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/types"
)

// Member data types understood by the strv parser.
const (
	DataTypeBoolean         = "boolean"
	DataTypeByte            = "byte"
	DataTypeInt             = "int"
	DataTypeFloat           = "float"
	DataTypeString          = "string"
	DataTypeRGB             = "rgb"
	DataTypeDirectionVector = "direction-vector"
)

// MemberDescription describes one option member for resolver-driven
// construction from "name=value" string vectors.
type MemberDescription struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Description enumerates the members of a type's options along with the
// sub-API tag a constructed Bag will carry.
type Description struct {
	SubAPI  uint16              `json:"sub_api"`
	Members []MemberDescription `json:"members"`
}

func (d *Description) member(name string) *MemberDescription {
	for i := range d.Members {
		if d.Members[i].Name == name {
			return &d.Members[i]
		}
	}
	return nil
}

// Bag is a schema-driven options value for types resolved by name. Values
// are keyed by member name and already coerced to the member's data type.
type Bag struct {
	Base
	desc   *Description
	values map[string]any
}

// Description returns the member description the bag was built against.
func (b *Bag) Description() *Description { return b.desc }

// Clone returns an independent copy of the bag sharing the description.
func (b *Bag) Clone() *Bag {
	values := make(map[string]any, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	return &Bag{Base: b.Base, desc: b.desc, values: values}
}

// Set stores an already coerced member value.
func (b *Bag) Set(name string, value any) error {
	if b.desc.member(name) == nil {
		return errors.WrapInvalid(errors.ErrInvalidOption, "Options", "Set",
			fmt.Sprintf("unknown option %q", name))
	}
	b.values[name] = value
	return nil
}

// Get returns the value of a member, if set.
func (b *Bag) Get(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Boolean returns a boolean member or the fallback.
func (b *Bag) Boolean(name string, fallback bool) bool {
	if v, ok := b.values[name].(bool); ok {
		return v
	}
	return fallback
}

// Int returns an int member's range or the fallback value with open bounds.
func (b *Bag) Int(name string, fallback int32) types.IntRange {
	if v, ok := b.values[name].(types.IntRange); ok {
		return v
	}
	return types.NewIntRange(fallback)
}

// Float returns a float member's range or the fallback value with open bounds.
func (b *Bag) Float(name string, fallback float64) types.FloatRange {
	if v, ok := b.values[name].(types.FloatRange); ok {
		return v
	}
	return types.NewFloatRange(fallback)
}

// String returns a string member or the fallback.
func (b *Bag) String(name string, fallback string) string {
	if v, ok := b.values[name].(string); ok {
		return v
	}
	return fallback
}

// NewFromStrv builds a Bag from a vector of "name=value" strings validated
// against desc. Numeric values accept the extended "value|min|max|step"
// syntax. Unknown names, type mismatches and missing required members fail
// with invalid-option.
func NewFromStrv(desc *Description, strv []string) (*Bag, error) {
	if desc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument, "Options", "NewFromStrv",
			"nil description")
	}

	bag := &Bag{
		Base:   NewBase(desc.SubAPI),
		desc:   desc,
		values: make(map[string]any, len(desc.Members)),
	}

	for _, entry := range strv {
		name, raw, found := strings.Cut(entry, "=")
		if !found {
			return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromStrv",
				fmt.Sprintf("entry %q is not name=value", entry))
		}

		member := desc.member(name)
		if member == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromStrv",
				fmt.Sprintf("unknown option %q", name))
		}

		value, err := parseMemberValue(member, raw)
		if err != nil {
			return nil, err
		}
		bag.values[name] = value
	}

	for _, member := range desc.Members {
		if _, ok := bag.values[member.Name]; ok {
			continue
		}
		if member.Required {
			return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromStrv",
				fmt.Sprintf("missing required option %q", member.Name))
		}
		if member.Default != nil {
			value, err := coerceDefault(&member)
			if err != nil {
				return nil, err
			}
			bag.values[member.Name] = value
		}
	}

	return bag, nil
}

// Strv serializes the bag back to a sorted "name=value" vector. Parsing the
// result with the same description yields an equal bag.
func (b *Bag) Strv() []string {
	out := make([]string, 0, len(b.values))
	for name, value := range b.values {
		out = append(out, name+"="+formatMemberValue(value))
	}
	sort.Strings(out)
	return out
}

func invalidOption(member *MemberDescription, raw string, reason string) error {
	return errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromStrv",
		fmt.Sprintf("option %q value %q: %s", member.Name, raw, reason))
}

func parseMemberValue(member *MemberDescription, raw string) (any, error) {
	switch member.DataType {
	case DataTypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalidOption(member, raw, "not a boolean")
		}
		return v, nil

	case DataTypeByte:
		v, err := strconv.ParseUint(raw, 0, 8)
		if err != nil {
			return nil, invalidOption(member, raw, "not a byte")
		}
		return byte(v), nil

	case DataTypeInt:
		r, err := parseIntRange(raw)
		if err != nil {
			return nil, invalidOption(member, raw, err.Error())
		}
		if err := r.Validate(); err != nil {
			return nil, errors.Wrap(err, "Options", "NewFromStrv",
				fmt.Sprintf("option %q bounds", member.Name))
		}
		return r, nil

	case DataTypeFloat:
		r, err := parseFloatRange(raw)
		if err != nil {
			return nil, invalidOption(member, raw, err.Error())
		}
		if err := r.Validate(); err != nil {
			return nil, errors.Wrap(err, "Options", "NewFromStrv",
				fmt.Sprintf("option %q bounds", member.Name))
		}
		return r, nil

	case DataTypeString:
		return raw, nil

	case DataTypeRGB:
		return parseRGB(member, raw)

	case DataTypeDirectionVector:
		return parseDirectionVector(member, raw)

	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidOption, "Options", "NewFromStrv",
			fmt.Sprintf("option %q has unsupported data type %q", member.Name, member.DataType))
	}
}

// parseIntRange accepts "value" or "value|min|max|step".
func parseIntRange(raw string) (types.IntRange, error) {
	fields := strings.Split(raw, "|")
	if len(fields) != 1 && len(fields) != 4 {
		return types.IntRange{}, fmt.Errorf("expected value or value|min|max|step")
	}

	parsed := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 0, 32)
		if err != nil {
			return types.IntRange{}, fmt.Errorf("field %d is not an integer", i)
		}
		parsed[i] = v
	}

	r := types.NewIntRange(int32(parsed[0]))
	if len(parsed) == 4 {
		r.Min = int32(parsed[1])
		r.Max = int32(parsed[2])
		r.Step = int32(parsed[3])
	}
	return r, nil
}

// parseFloatRange accepts "value" or "value|min|max|step".
func parseFloatRange(raw string) (types.FloatRange, error) {
	fields := strings.Split(raw, "|")
	if len(fields) != 1 && len(fields) != 4 {
		return types.FloatRange{}, fmt.Errorf("expected value or value|min|max|step")
	}

	parsed := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return types.FloatRange{}, fmt.Errorf("field %d is not a number", i)
		}
		parsed[i] = v
	}

	r := types.NewFloatRange(parsed[0])
	if len(parsed) == 4 {
		r.Min = parsed[1]
		r.Max = parsed[2]
		r.Step = parsed[3]
	}
	return r, nil
}

// parseRGB accepts "red|green|blue" or "red|green|blue|redmax|greenmax|bluemax".
func parseRGB(member *MemberDescription, raw string) (types.RGB, error) {
	fields := strings.Split(raw, "|")
	if len(fields) != 3 && len(fields) != 6 {
		return types.RGB{}, invalidOption(member, raw, "expected r|g|b or r|g|b|rmax|gmax|bmax")
	}

	parsed := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 0, 32)
		if err != nil {
			return types.RGB{}, invalidOption(member, raw, "channel is not an unsigned integer")
		}
		parsed[i] = v
	}

	c := types.NewRGB(uint32(parsed[0]), uint32(parsed[1]), uint32(parsed[2]))
	if len(parsed) == 6 {
		c.RedMax = uint32(parsed[3])
		c.GreenMax = uint32(parsed[4])
		c.BlueMax = uint32(parsed[5])
	}
	if err := c.Validate(); err != nil {
		return types.RGB{}, errors.Wrap(err, "Options", "NewFromStrv",
			fmt.Sprintf("option %q channels", member.Name))
	}
	return c, nil
}

// parseDirectionVector accepts "x|y|z" or "x|y|z|min|max".
func parseDirectionVector(member *MemberDescription, raw string) (types.DirectionVector, error) {
	fields := strings.Split(raw, "|")
	if len(fields) != 3 && len(fields) != 5 {
		return types.DirectionVector{}, invalidOption(member, raw, "expected x|y|z or x|y|z|min|max")
	}

	parsed := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return types.DirectionVector{}, invalidOption(member, raw, "axis is not a number")
		}
		parsed[i] = v
	}

	d := types.DirectionVector{X: parsed[0], Y: parsed[1], Z: parsed[2]}
	if len(parsed) == 5 {
		d.Min = parsed[3]
		d.Max = parsed[4]
	} else {
		d.Min = -dvDefaultBound
		d.Max = dvDefaultBound
	}
	if err := d.Validate(); err != nil {
		return types.DirectionVector{}, errors.Wrap(err, "Options", "NewFromStrv",
			fmt.Sprintf("option %q axes", member.Name))
	}
	return d, nil
}

const dvDefaultBound = 1e9

func coerceDefault(member *MemberDescription) (any, error) {
	switch v := member.Default.(type) {
	case string:
		return parseMemberValue(member, v)
	case bool:
		if member.DataType != DataTypeBoolean {
			return nil, invalidOption(member, "default", "boolean default for non-boolean member")
		}
		return v, nil
	case int:
		return parseMemberValue(member, strconv.Itoa(v))
	case int32:
		return parseMemberValue(member, strconv.FormatInt(int64(v), 10))
	case int64:
		return parseMemberValue(member, strconv.FormatInt(v, 10))
	case float64:
		return parseMemberValue(member, strconv.FormatFloat(v, 'g', -1, 64))
	case types.IntRange, types.FloatRange, types.RGB, types.DirectionVector, byte:
		return v, nil
	default:
		return nil, invalidOption(member, "default", "unsupported default type")
	}
}

func formatMemberValue(value any) string {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case byte:
		return strconv.FormatUint(uint64(v), 10)
	case string:
		return v
	case types.IntRange:
		return fmt.Sprintf("%d|%d|%d|%d", v.Value, v.Min, v.Max, v.Step)
	case types.FloatRange:
		return fmt.Sprintf("%s|%s|%s|%s",
			formatFloat(v.Value), formatFloat(v.Min), formatFloat(v.Max), formatFloat(v.Step))
	case types.RGB:
		return fmt.Sprintf("%d|%d|%d|%d|%d|%d", v.Red, v.Green, v.Blue, v.RedMax, v.GreenMax, v.BlueMax)
	case types.DirectionVector:
		return fmt.Sprintf("%s|%s|%s|%s|%s",
			formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z), formatFloat(v.Min), formatFloat(v.Max))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
