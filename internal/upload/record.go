package upload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// valueKind identifies which field of a Value is populated.
type valueKind uint8

const (
	kindString valueKind = iota + 1
	kindInt
	kindFloat
	kindBool
)

// Value is a metadata value restricted to string, number or boolean.
type Value struct {
	kind valueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func String(s string) Value { return Value{kind: kindString, s: s} }
func Int(i int64) Value     { return Value{kind: kindInt, i: i} }
func Float(f float64) Value { return Value{kind: kindFloat, f: f} }
func Bool(b bool) Value     { return Value{kind: kindBool, b: b} }

// Any returns the underlying Go value, suitable for JSON-like property maps.
func (v Value) Any() any {
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindBool:
		return v.b
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		// encoding/json would replace invalid bytes with U+FFFD and make
		// distinct values collide.
		if !utf8.ValidString(v.s) {
			return nil, &MalformedMetadataError{Reason: "string is not valid UTF-8"}
		}
		return json.Marshal(v.s)
	case kindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case kindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, &MalformedMetadataError{Reason: fmt.Sprintf("non-finite number %v", v.f)}
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case kindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	}
	return nil, &MalformedMetadataError{Reason: "empty value"}
}

// Metadata maps string keys to scalar values. encoding/json emits map keys
// in sorted order, which makes its encoding canonical.
type Metadata map[string]Value

// Clone returns a shallow copy with room for extra keys.
func (m Metadata) Clone(extra int) Metadata {
	out := make(Metadata, len(m)+extra)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Properties converts the metadata into a plain map for client libraries.
func (m Metadata) Properties() map[string]interface{} {
	props := make(map[string]interface{}, len(m))
	for k, v := range m {
		props[k] = v.Any()
	}
	return props
}

// MetadataFrom converts a dynamically typed map. Only strings, booleans and
// finite numbers are accepted; keys and strings must be valid UTF-8.
func MetadataFrom(raw map[string]any) (Metadata, error) {
	md := make(Metadata, len(raw))
	for k, x := range raw {
		if !utf8.ValidString(k) {
			return nil, &MalformedMetadataError{Key: k, Reason: "key is not valid UTF-8"}
		}
		var v Value
		switch t := x.(type) {
		case string:
			if !utf8.ValidString(t) {
				return nil, &MalformedMetadataError{Key: k, Reason: "string is not valid UTF-8"}
			}
			v = String(t)
		case bool:
			v = Bool(t)
		case int:
			v = Int(int64(t))
		case int8:
			v = Int(int64(t))
		case int16:
			v = Int(int64(t))
		case int32:
			v = Int(int64(t))
		case int64:
			v = Int(t)
		case uint8:
			v = Int(int64(t))
		case uint16:
			v = Int(int64(t))
		case uint32:
			v = Int(int64(t))
		case uint:
			if uint64(t) > math.MaxInt64 {
				return nil, &MalformedMetadataError{Key: k, Reason: "integer overflows int64"}
			}
			v = Int(int64(t))
		case uint64:
			if t > math.MaxInt64 {
				return nil, &MalformedMetadataError{Key: k, Reason: "integer overflows int64"}
			}
			v = Int(int64(t))
		case float32:
			v = Float(float64(t))
		case float64:
			v = Float(t)
		default:
			return nil, &MalformedMetadataError{Key: k, Reason: fmt.Sprintf("unsupported type %T", x)}
		}
		if v.kind == kindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
			return nil, &MalformedMetadataError{Key: k, Reason: fmt.Sprintf("non-finite number %v", v.f)}
		}
		md[k] = v
	}
	return md, nil
}

// Chunk is a slice of source text together with the metadata of the
// document it came from.
type Chunk struct {
	Text     string
	Metadata Metadata
}

// TextKey is the metadata key under which a record keeps its chunk text.
const TextKey = "text"

// Record is the unit written to the vector index.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// NewRecord derives the record for an embedded chunk. The chunk text is
// stored under TextKey so it can be displayed at retrieval time.
func NewRecord(c Chunk, values []float32) (Record, error) {
	id, err := Identity(c.Text, c.Metadata)
	if err != nil {
		return Record{}, err
	}
	md := c.Metadata.Clone(1)
	md[TextKey] = String(c.Text)
	return Record{ID: id, Values: values, Metadata: md}, nil
}
