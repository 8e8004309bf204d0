// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tfexample

import (
	"bytes"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from example.proto and feature.proto.
const (
	exampleFeaturesField protowire.Number = 1
	featuresMapField     protowire.Number = 1
	mapKeyField          protowire.Number = 1
	mapValueField        protowire.Number = 2
	bytesListField       protowire.Number = 1
	floatListField       protowire.Number = 2
	int64ListField       protowire.Number = 3
	listValueField       protowire.Number = 1
)

// Marshal serializes the Example to the protobuf wire format.
//
// Map entries are written sorted by key, so the same Example always serializes to the same bytes.
func (e *Example) Marshal() ([]byte, error) {
	var features []byte
	for _, key := range e.Keys() {
		f := e.Features[key]
		value, err := f.marshal()
		if err != nil {
			return nil, errors.WithMessagef(err, "feature %q", key)
		}
		var entry []byte
		entry = protowire.AppendTag(entry, mapKeyField, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, mapValueField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, value)

		features = protowire.AppendTag(features, featuresMapField, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}
	var out []byte
	out = protowire.AppendTag(out, exampleFeaturesField, protowire.BytesType)
	out = protowire.AppendBytes(out, features)
	return out, nil
}

func (f *Feature) marshal() ([]byte, error) {
	var list []byte
	var field protowire.Number
	switch f.Kind {
	case BytesKind:
		field = bytesListField
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	case FloatKind:
		field = floatListField
		if len(f.Floats) > 0 {
			packed := make([]byte, 0, 4*len(f.Floats))
			for _, v := range f.Floats {
				packed = protowire.AppendFixed32(packed, math.Float32bits(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	case Int64Kind:
		field = int64ListField
		if len(f.Int64s) > 0 {
			var packed []byte
			for _, v := range f.Int64s {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			list = protowire.AppendTag(list, listValueField, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	default:
		return nil, errors.Errorf("invalid feature kind %d", f.Kind)
	}
	var out []byte
	out = protowire.AppendTag(out, field, protowire.BytesType)
	out = protowire.AppendBytes(out, list)
	return out, nil
}

// Unmarshal parses an Example from its protobuf wire format.
//
// Both packed and unpacked encodings of numeric lists are accepted, and unknown fields are skipped.
func Unmarshal(data []byte) (*Example, error) {
	e := New()
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != exampleFeaturesField || typ != protowire.BytesType {
			return nil
		}
		return forEachField(value, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != featuresMapField || typ != protowire.BytesType {
				return nil
			}
			key, f, err := unmarshalMapEntry(entry)
			if err != nil {
				return err
			}
			e.Features[key] = f
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse tf.train.Example")
	}
	return e, nil
}

func unmarshalMapEntry(entry []byte) (key string, f *Feature, err error) {
	f = &Feature{}
	err = forEachField(entry, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapKeyField:
			key = string(value)
		case mapValueField:
			return f.unmarshal(value)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if f.Kind == InvalidKind {
		return "", nil, errors.Errorf("feature %q has no kind set", key)
	}
	return key, f, nil
}

func (f *Feature) unmarshal(data []byte) error {
	return forEachField(data, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case bytesListField:
			f.Kind = BytesKind
			return forEachField(list, func(num protowire.Number, typ protowire.Type, value []byte) error {
				if num == listValueField && typ == protowire.BytesType {
					f.Bytes = append(f.Bytes, bytes.Clone(value))
				}
				return nil
			})
		case floatListField:
			f.Kind = FloatKind
			return f.unmarshalFloats(list)
		case int64ListField:
			f.Kind = Int64Kind
			return f.unmarshalInt64s(list)
		}
		return nil
	})
}

func (f *Feature) unmarshalFloats(list []byte) error {
	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return protowire.ParseError(n)
		}
		list = list[n:]
		switch {
		case num == listValueField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				packed = packed[n:]
				f.Floats = append(f.Floats, math.Float32frombits(v))
			}
		case num == listValueField && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
			f.Floats = append(f.Floats, math.Float32frombits(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
		}
	}
	return nil
}

func (f *Feature) unmarshalInt64s(list []byte) error {
	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return protowire.ParseError(n)
		}
		list = list[n:]
		switch {
		case num == listValueField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
			for len(packed) > 0 {
				v, n := protowire.ConsumeVarint(packed)
				if n < 0 {
					return protowire.ParseError(n)
				}
				packed = packed[n:]
				f.Int64s = append(f.Int64s, int64(v))
			}
		case num == listValueField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
			f.Int64s = append(f.Int64s, int64(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return protowire.ParseError(n)
			}
			list = list[n:]
		}
	}
	return nil
}

// forEachField calls fn for every field of the message in data. For length-delimited fields value is the
// contents, for every other type it is nil.
func forEachField(data []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		var value []byte
		if typ == protowire.BytesType {
			value, n = protowire.ConsumeBytes(data)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}
