// Package values implements the typed UI value model shared between the
// daemon core, modules and clients.
//
// A UIValue is a named, self-describing value that modules expose to editors:
// primitive scalars, colors, file paths, choices, arrays and labelled groups.
// Values round-trip losslessly through JSON and can be addressed inside a
// value tree with dot-and-bracket paths ("group.field[2].sub"), which is how
// editors mutate component state without understanding it.
//
// The package is deliberately free of daemon dependencies so that client
// libraries can reuse it verbatim.
package values

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FieldKind discriminates the variants of a Field.
type FieldKind string

// Recognized field kinds. The string values are part of the wire format.
const (
	KindHeader   FieldKind = "header"
	KindBool     FieldKind = "bool"
	KindInt      FieldKind = "int"
	KindUInt     FieldKind = "uint"
	KindFloat    FieldKind = "float"
	KindText     FieldKind = "text"
	KindColor    FieldKind = "color"
	KindFilePath FieldKind = "file_path"
	KindChoice   FieldKind = "choice"
	KindArray    FieldKind = "array"
	KindGroup    FieldKind = "group"
)

// Field is the payload of a UIValue. Exactly one concrete type exists per
// FieldKind; two fields are compatible for Set when their kinds match.
type Field interface {
	Kind() FieldKind

	// clone returns a deep copy so that edits never alias the source tree.
	clone() Field
}

// Header is a visual separator carrying no data.
type Header struct{}

// Bool holds a boolean toggle.
type Bool struct {
	Value bool `json:"value"`
}

// Int holds a signed integer with a declared width in bits (8, 16, 32 or 64).
// The width is advisory for editors; storage is always 64-bit.
type Int struct {
	Value int64 `json:"value"`
	Bits  int   `json:"bits,omitempty"`
}

// UInt holds an unsigned integer with a declared width in bits.
type UInt struct {
	Value uint64 `json:"value"`
	Bits  int    `json:"bits,omitempty"`
}

// Float holds a 64-bit floating point number.
type Float struct {
	Value float64 `json:"value"`
}

// Text holds a free-form string.
type Text struct {
	Value string `json:"value"`
}

// Color holds an 8-bit RGBA quadruple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// FilePath holds a path to a file on the daemon's filesystem.
type FilePath struct {
	Path string `json:"path"`
}

// Choice holds one selected tag out of an enumerated set.
type Choice struct {
	Options  []string `json:"options"`
	Selected string   `json:"selected"`
}

// Array holds an ordered list of elements, each element being a bundle of
// UIValues stamped out from Template. AddArrayElement appends a fresh clone of the
// template; paths select elements with a bracket index.
type Array struct {
	Template []UIValue   `json:"template"`
	Elements [][]UIValue `json:"elements"`
}

// Group holds an ordered set of named child values. Paths descend into a
// group with a dot and the child's name.
type Group struct {
	Fields []UIValue `json:"fields"`
}

func (Header) Kind() FieldKind   { return KindHeader }
func (Bool) Kind() FieldKind     { return KindBool }
func (Int) Kind() FieldKind      { return KindInt }
func (UInt) Kind() FieldKind     { return KindUInt }
func (Float) Kind() FieldKind    { return KindFloat }
func (Text) Kind() FieldKind     { return KindText }
func (Color) Kind() FieldKind    { return KindColor }
func (FilePath) Kind() FieldKind { return KindFilePath }
func (Choice) Kind() FieldKind   { return KindChoice }
func (Array) Kind() FieldKind    { return KindArray }
func (Group) Kind() FieldKind    { return KindGroup }

func (f Header) clone() Field   { return f }
func (f Bool) clone() Field     { return f }
func (f Int) clone() Field      { return f }
func (f UInt) clone() Field     { return f }
func (f Float) clone() Field    { return f }
func (f Text) clone() Field     { return f }
func (f Color) clone() Field    { return f }
func (f FilePath) clone() Field { return f }

func (f Choice) clone() Field {
	c := Choice{Selected: f.Selected}
	if len(f.Options) > 0 {
		c.Options = append([]string(nil), f.Options...)
	}
	return c
}

func (f Array) clone() Field {
	a := Array{Template: CloneValues(f.Template)}
	if len(f.Elements) > 0 {
		a.Elements = make([][]UIValue, len(f.Elements))
		for i, e := range f.Elements {
			a.Elements[i] = CloneValues(e)
		}
	}
	return a
}

func (f Group) clone() Field {
	return Group{Fields: CloneValues(f.Fields)}
}

// UIValue is a named value with display metadata and a typed payload.
type UIValue struct {
	// Name identifies the value inside its parent; it is the token used in
	// paths and must be unique among siblings.
	Name string

	// DisplayName is the human readable label shown by editors.
	DisplayName string

	// Description is optional editor help text.
	Description string

	// ReadOnly values are shown but reject all edits.
	ReadOnly bool

	// Value is the typed payload.
	Value Field
}

// UIPathValue is a UIValue annotated with the path that locates it inside a
// value tree. Clients send these back to the daemon to perform edits.
type UIPathValue struct {
	UIValue
	Path string
}

// Clone returns a deep copy of the value.
func (v UIValue) Clone() UIValue {
	c := v
	if v.Value != nil {
		c.Value = v.Value.clone()
	}
	return c
}

// CloneValues deep-copies a value list.
func CloneValues(vs []UIValue) []UIValue {
	if len(vs) == 0 {
		return nil
	}
	out := make([]UIValue, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

type valueEnvelope struct {
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name"`
	Description string              `json:"description,omitempty"`
	ReadOnly    bool                `json:"read_only,omitempty"`
	Type        FieldKind           `json:"type"`
	Value       jsoniter.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value in its self-describing wire form:
// the metadata fields, a "type" tag and a kind-specific "value" payload.
func (v UIValue) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return nil, fmt.Errorf("value %q has no payload", v.Name)
	}
	env := valueEnvelope{
		Name:        v.Name,
		DisplayName: v.DisplayName,
		Description: v.Description,
		ReadOnly:    v.ReadOnly,
		Type:        v.Value.Kind(),
	}
	if _, ok := v.Value.(Header); !ok {
		payload, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		env.Value = payload
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the self-describing wire form produced by
// MarshalJSON. Unknown type tags are an error, not a silent skip.
func (v *UIValue) UnmarshalJSON(data []byte) error {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	field, err := decodeField(env.Type, env.Value)
	if err != nil {
		return fmt.Errorf("value %q: %w", env.Name, err)
	}
	*v = UIValue{
		Name:        env.Name,
		DisplayName: env.DisplayName,
		Description: env.Description,
		ReadOnly:    env.ReadOnly,
		Value:       field,
	}
	return nil
}

func decodeField(kind FieldKind, payload jsoniter.RawMessage) (Field, error) {
	if kind == KindHeader {
		return Header{}, nil
	}
	if payload == nil {
		return nil, fmt.Errorf("missing payload for field type %q", kind)
	}
	switch kind {
	case KindBool:
		return decodeInto[Bool](payload)
	case KindInt:
		return decodeInto[Int](payload)
	case KindUInt:
		return decodeInto[UInt](payload)
	case KindFloat:
		return decodeInto[Float](payload)
	case KindText:
		return decodeInto[Text](payload)
	case KindColor:
		return decodeInto[Color](payload)
	case KindFilePath:
		return decodeInto[FilePath](payload)
	case KindChoice:
		return decodeInto[Choice](payload)
	case KindArray:
		f, err := decodeInto[Array](payload)
		if err != nil {
			return nil, err
		}
		a := f.(Array)
		if len(a.Template) == 0 {
			a.Template = nil
		}
		if len(a.Elements) == 0 {
			a.Elements = nil
		}
		return a, nil
	case KindGroup:
		f, err := decodeInto[Group](payload)
		if err != nil {
			return nil, err
		}
		g := f.(Group)
		if len(g.Fields) == 0 {
			g.Fields = nil
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", kind)
	}
}

func decodeInto[T Field](payload jsoniter.RawMessage) (Field, error) {
	var f T
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, err
	}
	return f, nil
}

type pathValueEnvelope struct {
	valueEnvelope
	Path string `json:"path"`
}

// MarshalJSON encodes the path value as a UIValue with an extra "path" field.
func (v UIPathValue) MarshalJSON() ([]byte, error) {
	inner, err := v.UIValue.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var env pathValueEnvelope
	if err := json.Unmarshal(inner, &env.valueEnvelope); err != nil {
		return nil, err
	}
	env.Path = v.Path
	return json.Marshal(env)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (v *UIPathValue) UnmarshalJSON(data []byte) error {
	if err := v.UIValue.UnmarshalJSON(data); err != nil {
		return err
	}
	var env struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	v.Path = env.Path
	return nil
}
