package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyMetadataValue     = errors.New("metadata value must set exactly one variant")
	ErrDuplicateMetadataKey   = errors.New("duplicate metadata key")
	ErrEmptyMetadataKey       = errors.New("metadata key is required")
	ErrMultipleMetadataValues = errors.New("metadata value sets more than one variant")
)

// Value is a typed metadata value. Exactly one field is set.
type Value struct {
	Int  *int64
	Nat  *uint64
	Blob []byte
	Text *string
}

func IntValue(v int64) Value   { return Value{Int: &v} }
func NatValue(v uint64) Value  { return Value{Nat: &v} }
func TextValue(v string) Value { return Value{Text: &v} }

func BlobValue(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{Blob: v}
}

func (v Value) Validate() error {
	n := 0
	if v.Int != nil {
		n++
	}
	if v.Nat != nil {
		n++
	}
	if v.Blob != nil {
		n++
	}
	if v.Text != nil {
		n++
	}
	switch {
	case n == 0:
		return ErrEmptyMetadataValue
	case n > 1:
		return ErrMultipleMetadataValues
	}
	return nil
}

func (v Value) String() string {
	switch {
	case v.Int != nil:
		return fmt.Sprintf("Int(%d)", *v.Int)
	case v.Nat != nil:
		return fmt.Sprintf("Nat(%d)", *v.Nat)
	case v.Blob != nil:
		return fmt.Sprintf("Blob(%x)", v.Blob)
	case v.Text != nil:
		return fmt.Sprintf("Text(%q)", *v.Text)
	}
	return "<empty>"
}

// MarshalJSON writes the single set variant, e.g. {"Nat":7}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Int != nil:
		return json.Marshal(map[string]int64{"Int": *v.Int})
	case v.Nat != nil:
		return json.Marshal(map[string]uint64{"Nat": *v.Nat})
	case v.Blob != nil:
		return json.Marshal(map[string][]byte{"Blob": v.Blob})
	case v.Text != nil:
		return json.Marshal(map[string]string{"Text": *v.Text})
	}
	return nil, ErrEmptyMetadataValue
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return ErrEmptyMetadataValue
	}
	var out Value
	for k, msg := range raw {
		switch k {
		case "Int":
			var n int64
			if err := json.Unmarshal(msg, &n); err != nil {
				return err
			}
			out.Int = &n
		case "Nat":
			var n uint64
			if err := json.Unmarshal(msg, &n); err != nil {
				return err
			}
			out.Nat = &n
		case "Blob":
			var blob []byte
			if err := json.Unmarshal(msg, &blob); err != nil {
				return err
			}
			if blob == nil {
				blob = []byte{}
			}
			out.Blob = blob
		case "Text":
			var t string
			if err := json.Unmarshal(msg, &t); err != nil {
				return err
			}
			out.Text = &t
		default:
			return fmt.Errorf("unknown metadata variant %q", k)
		}
	}
	*v = out
	return nil
}

// MetadataEntry is one key of an ordered metadata mapping.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Metadata is an ordered mapping; order is preserved as minted.
type Metadata []MetadataEntry

func (m Metadata) Validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, e := range m {
		if e.Key == "" {
			return ErrEmptyMetadataKey
		}
		if _, ok := seen[e.Key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMetadataKey, e.Key)
		}
		seen[e.Key] = struct{}{}
		if err := e.Value.Validate(); err != nil {
			return fmt.Errorf("metadata %s: %w", e.Key, err)
		}
	}
	return nil
}

// Clone returns a deep copy that shares no pointers or bytes with m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for i, e := range m {
		out[i] = MetadataEntry{Key: e.Key, Value: e.Value.Clone()}
	}
	return out
}

func (v Value) Clone() Value {
	var out Value
	if v.Int != nil {
		n := *v.Int
		out.Int = &n
	}
	if v.Nat != nil {
		n := *v.Nat
		out.Nat = &n
	}
	if v.Blob != nil {
		out.Blob = append([]byte{}, v.Blob...)
	}
	if v.Text != nil {
		s := *v.Text
		out.Text = &s
	}
	return out
}

func (m Metadata) Get(key string) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// EncodeMetadata is the storage encoding shared by the SQL backends.
func EncodeMetadata(m Metadata) (string, error) {
	if m == nil {
		m = Metadata{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeMetadata(s string) (Metadata, error) {
	if s == "" {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
