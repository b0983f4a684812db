package autodoc

import (
	"encoding/json"
	"fmt"
)

// ItemKind is the value of the "type" key on an item payload.
type ItemKind string

const (
	KindStruct ItemKind = "struct"
	KindEnum   ItemKind = "enum"
	KindRoute  ItemKind = "route"
)

// VariantKind is the value of the "type" key on an enum variant.
type VariantKind string

const (
	VariantUnit   VariantKind = "unit"
	VariantTuple  VariantKind = "tuple"
	VariantStruct VariantKind = "struct"
)

// ItemInfo is one descriptor as written by the code generator.
type ItemInfo struct {
	Name     string  `json:"name"`
	Doc      *string `json:"doc"`
	Category string  `json:"category"`
	Hidden   bool    `json:"hidden"`
	Package  string  `json:"package"`
	Item     Item    `json:"item"`
}

// Item is the kind-specific payload. Exactly one of Struct, Enum or Route is
// set for a known Kind; an unknown Kind leaves all three nil.
type Item struct {
	Kind   ItemKind
	Struct *StructInfo
	Enum   *EnumInfo
	Route  *RouteInfo
}

type StructInfo struct {
	Fields []FieldInfo `json:"fields"`
}

type FieldInfo struct {
	Name      string  `json:"name"`
	Doc       *string `json:"doc"`
	FieldType string  `json:"field_type"`
	Flattened bool    `json:"flattened"`
	Nullable  bool    `json:"nullable"`
	Omittable bool    `json:"ommitable"`
}

type EnumInfo struct {
	Tag       *string       `json:"tag"`
	Untagged  bool          `json:"untagged"`
	Content   *string       `json:"content"`
	RenameAll *string       `json:"rename_all"`
	Variants  []EnumVariant `json:"variants"`
}

type EnumVariant struct {
	Kind      VariantKind `json:"type"`
	Name      string      `json:"name"`
	Doc       *string     `json:"doc"`
	FieldType string      `json:"field_type,omitempty"`
	Fields    []FieldInfo `json:"fields,omitempty"`
}

type RouteInfo struct {
	Method      string      `json:"method"`
	Route       string      `json:"route"`
	PathParams  []ParamInfo `json:"path_params"`
	QueryParams []ParamInfo `json:"query_params"`
	BodyType    *string     `json:"body_type"`
	ReturnType  *string     `json:"return_type"`
	Guards      []string    `json:"guards"`
}

type ParamInfo struct {
	Name      string `json:"name"`
	ParamType string `json:"param_type"`
}

// DocText returns the item doc or "" when absent.
func (i *ItemInfo) DocText() string {
	return deref(i.Doc)
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ItemKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decoding item kind: %w", err)
	}

	*i = Item{Kind: head.Type}
	switch head.Type {
	case KindStruct:
		i.Struct = &StructInfo{}
		if err := json.Unmarshal(data, i.Struct); err != nil {
			return fmt.Errorf("decoding struct payload: %w", err)
		}
	case KindEnum:
		i.Enum = &EnumInfo{}
		if err := json.Unmarshal(data, i.Enum); err != nil {
			return fmt.Errorf("decoding enum payload: %w", err)
		}
	case KindRoute:
		i.Route = &RouteInfo{}
		if err := json.Unmarshal(data, i.Route); err != nil {
			return fmt.Errorf("decoding route payload: %w", err)
		}
	}
	// Unknown kinds are left for the composer to reject with item context.
	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	var payload any
	switch {
	case i.Struct != nil:
		payload = i.Struct
	case i.Enum != nil:
		payload = i.Enum
	case i.Route != nil:
		payload = i.Route
	default:
		return json.Marshal(map[string]ItemKind{"type": i.Kind})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(i.Kind)
	fields["type"] = kind
	return json.Marshal(fields)
}

// UnmarshalJSON accepts both the generator's "ommitable" key and the
// correctly spelled "omittable".
func (f *FieldInfo) UnmarshalJSON(data []byte) error {
	type plain FieldInfo
	var raw struct {
		plain
		AltOmittable bool `json:"omittable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldInfo(raw.plain)
	f.Omittable = f.Omittable || raw.AltOmittable
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
