package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/hostgrid/rackq/internal/pkg/rackql"
)

// ErrMalformedSnapshot marks a snapshot document that decodes as JSON but
// does not follow the snapshot shape.
var ErrMalformedSnapshot = errors.New("malformed inventory snapshot")

// snapshot is the on-disk document shape.
type snapshot struct {
	Entities []*Entity `json:"entities"`
}

// Load reads a snapshot file into a fresh store. Files ending in .zst are
// zstd-compressed JSON; anything else is plain JSON.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot %s: %w", path, err)
		}
	}

	return Parse(data)
}

// Parse decodes a snapshot JSON document into a fresh store.
func Parse(data []byte) (*Store, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	entities := v.GetArray("entities")
	if entities == nil {
		return nil, fmt.Errorf("%w: missing entities array", ErrMalformedSnapshot)
	}

	store := NewStore()
	for i, ev := range entities {
		e, err := parseEntity(ev)
		if err != nil {
			return nil, fmt.Errorf("%w: entity %d: %v", ErrMalformedSnapshot, i, err)
		}
		store.Put(e)
	}
	return store, nil
}

func parseEntity(v *fastjson.Value) (*Entity, error) {
	e := &Entity{
		Type: string(v.GetStringBytes("type")),
		Name: string(v.GetStringBytes("name")),
	}
	if e.Type == "" || e.Name == "" {
		return nil, errors.New("type and name are required")
	}

	for _, cv := range v.GetArray("children") {
		child := rackql.EntityKey{
			Type: string(cv.GetStringBytes("type")),
			Name: string(cv.GetStringBytes("name")),
		}
		if child.Type == "" || child.Name == "" {
			return nil, errors.New("child references need type and name")
		}
		e.Children = append(e.Children, child)
	}

	for _, av := range v.GetArray("attrs") {
		value, err := attrValue(av.Get("value"))
		if err != nil {
			return nil, err
		}
		e.Attrs = append(e.Attrs, Attribute{
			Key:    string(av.GetStringBytes("key")),
			Subkey: string(av.GetStringBytes("subkey")),
			Number: av.GetInt("number"),
			Value:  value,
		})
	}
	return e, nil
}

// attrValue maps a JSON attribute value onto the evaluator's value types:
// strings stay strings, integral numbers become int64, everything else
// numeric becomes float64.
func attrValue(v *fastjson.Value) (any, error) {
	if v == nil {
		return nil, errors.New("attribute without value")
	}
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b), nil
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value type %s", v.Type())
	}
}

// Write serializes the store to path, zstd-compressing when the path ends
// in .zst. Entities are written in key order so snapshots diff cleanly.
func Write(path string, s *Store) error {
	doc := snapshot{}
	for _, key := range s.Keys() {
		e, ok := s.Get(key)
		if !ok {
			continue
		}
		doc.Entities = append(doc.Entities, e)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}
