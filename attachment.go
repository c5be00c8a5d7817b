package siohub

import (
	"math"
	"reflect"
	"sort"
)

const (
	placeholderFlag   = "_placeholder"
	placeholderNumber = "num"
)

// inbound placeholders are recognised under either key spelling
var placeholderKeys = [...]struct{ flag, number string }{
	{placeholderFlag, placeholderNumber},
	{"placeholder", "number"},
}

// placeholderIndex reports whether v is a binary attachment marker and
// returns the index embedded in it. The index is informational only.
func placeholderIndex(v interface{}) (int, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return 0, false
	}
	for _, keys := range placeholderKeys {
		if flag, ok := m[keys.flag].(bool); !ok || !flag {
			continue
		}
		if num, ok := asInt(m[keys.number]); ok {
			return num, true
		}
	}
	return 0, false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

// walkPayload visits every value in encounter order: slices and arrays by
// index and string-keyed maps by sorted key, the order the encoder writes
// them. fn may return a replacement for the visited value; descent stops at
// replaced values. Typed containers that are descended into come back as
// []interface{} or map[string]interface{}.
func walkPayload(v interface{}, fn func(interface{}) (interface{}, bool)) interface{} {
	if replacement, ok := fn(v); ok {
		return replacement
	}

	switch value := v.(type) {
	case nil, []byte, string, bool, float64, int:
		return v
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			out[i] = walkPayload(item, fn)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]interface{}, len(value))
		for _, k := range keys {
			out[k] = walkPayload(value[k], fn)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		// byte sequences are leaves
		if rv.Type().Elem().Kind() == reflect.Uint8 || (rv.Kind() == reflect.Slice && rv.IsNil()) {
			return v
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = walkPayload(rv.Index(i).Interface(), fn)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return v
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		out := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			out[k.String()] = walkPayload(rv.MapIndex(k).Interface(), fn)
		}
		return out
	}
	return v
}

func countPlaceholders(data interface{}) int {
	count := 0
	walkPayload(data, func(v interface{}) (interface{}, bool) {
		if _, ok := placeholderIndex(v); ok {
			count++
			return v, true
		}
		return nil, false
	})
	return count
}

// reconstructPayload swaps the markers in data for binaries by position.
// It fails unless the marker count matches len(binaries) exactly.
func reconstructPayload(data interface{}, binaries [][]byte) (interface{}, bool) {
	if countPlaceholders(data) != len(binaries) {
		return nil, false
	}

	next := 0
	return walkPayload(data, func(v interface{}) (interface{}, bool) {
		if _, ok := placeholderIndex(v); ok {
			b := binaries[next]
			next++
			return b, true
		}
		return nil, false
	}), true
}

// deconstructPayload replaces every []byte in data with a numbered marker
// and returns the binaries in marker order.
func deconstructPayload(data interface{}) (interface{}, [][]byte) {
	var binaries [][]byte
	out := walkPayload(data, func(v interface{}) (interface{}, bool) {
		b, ok := v.([]byte)
		if !ok {
			return nil, false
		}
		marker := map[string]interface{}{
			placeholderFlag:   true,
			placeholderNumber: len(binaries),
		}
		binaries = append(binaries, b)
		return marker, true
	})
	return out, binaries
}
