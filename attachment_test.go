package siohub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marker(flag, number string, n interface{}) map[string]interface{} {
	return map[string]interface{}{flag: true, number: n}
}

func TestPlaceholderIndex(t *testing.T) {
	var tests = []struct {
		name string
		in   interface{}
		num  int
		ok   bool
	}{
		{"outbound spelling", marker("_placeholder", "num", float64(2)), 2, true},
		{"inbound spelling", marker("placeholder", "number", float64(0)), 0, true},
		{"int index", marker("_placeholder", "num", 3), 3, true},
		{"flag false", map[string]interface{}{"_placeholder": false, "num": float64(0)}, 0, false},
		{"flag not bool", map[string]interface{}{"_placeholder": "true", "num": float64(0)}, 0, false},
		{"fractional index", marker("_placeholder", "num", 1.5), 0, false},
		{"missing index", map[string]interface{}{"placeholder": true}, 0, false},
		{"mixed spelling", map[string]interface{}{"placeholder": true, "num": float64(0)}, 0, false},
		{"not an object", "placeholder", 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			num, ok := placeholderIndex(test.in)
			assert.Equal(t, test.ok, ok)
			if test.ok {
				assert.Equal(t, test.num, num)
			}
		})
	}
}

func TestDeconstructPayload(t *testing.T) {
	data := []interface{}{
		"upload",
		[]byte("one"),
		map[string]interface{}{
			"b": []byte("three"),
			"a": []interface{}{[]byte("two")},
			"c": "text",
		},
	}

	out, binaries := deconstructPayload(data)

	assert.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, binaries)
	assert.Equal(t, []interface{}{
		"upload",
		marker("_placeholder", "num", 0),
		map[string]interface{}{
			"a": []interface{}{marker("_placeholder", "num", 1)},
			"b": marker("_placeholder", "num", 2),
			"c": "text",
		},
	}, out)

	// the input is left untouched
	assert.Equal(t, []byte("one"), data[1])
}

func TestDeconstructTypedContainers(t *testing.T) {
	var tests = []struct {
		name     string
		in       interface{}
		want     interface{}
		binaries [][]byte
	}{
		{
			name:     "slice of byte slices",
			in:       [][]byte{{1, 2}, {3}},
			want:     []interface{}{marker("_placeholder", "num", 0), marker("_placeholder", "num", 1)},
			binaries: [][]byte{{1, 2}, {3}},
		},
		{
			name: "map of byte slices",
			in:   map[string][]byte{"g": {2}, "f": {1}},
			want: map[string]interface{}{
				"f": marker("_placeholder", "num", 0),
				"g": marker("_placeholder", "num", 1),
			},
			binaries: [][]byte{{1}, {2}},
		},
		{
			name:     "array of byte slices",
			in:       [1][]byte{{7}},
			want:     []interface{}{marker("_placeholder", "num", 0)},
			binaries: [][]byte{{7}},
		},
		{
			name: "typed values without binaries",
			in:   map[string][]string{"a": {"x"}},
			want: map[string]interface{}{"a": []interface{}{"x"}},
		},
		{
			name: "byte array stays a leaf",
			in:   [2]byte{1, 2},
			want: [2]byte{1, 2},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, binaries := deconstructPayload(test.in)
			assert.Equal(t, test.want, out)
			assert.Equal(t, test.binaries, binaries)
		})
	}
}

func TestReconstructPayloadNested(t *testing.T) {
	original := []interface{}{
		"evt",
		map[string]interface{}{
			"files": []interface{}{[]byte{1}, []byte{2, 2}},
			"meta":  map[string]interface{}{"thumb": []byte{3}},
		},
	}

	deconstructed, binaries := deconstructPayload(original)
	require.Len(t, binaries, 3)

	rebuilt, ok := reconstructPayload(deconstructed, binaries)
	require.True(t, ok)
	assert.Equal(t, original, rebuilt)
}

func TestReconstructPayloadUsesPosition(t *testing.T) {
	// embedded indices are ignored in favour of encounter order
	data := []interface{}{
		"evt",
		marker("placeholder", "number", float64(1)),
		marker("placeholder", "number", float64(0)),
	}

	rebuilt, ok := reconstructPayload(data, [][]byte{[]byte("first"), []byte("second")})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"evt", []byte("first"), []byte("second")}, rebuilt)
}

func TestReconstructPayloadCountMismatch(t *testing.T) {
	data := []interface{}{"evt", marker("_placeholder", "num", 0)}

	_, ok := reconstructPayload(data, nil)
	assert.False(t, ok)

	_, ok = reconstructPayload(data, [][]byte{{1}, {2}})
	assert.False(t, ok)
}

func TestPendingPacketState(t *testing.T) {
	event := &Packet{
		Type:        PacketTypeBinaryEvent,
		Namespace:   "/",
		Attachments: 2,
		Data: []interface{}{
			"evt",
			marker("placeholder", "number", float64(0)),
			marker("placeholder", "number", float64(1)),
		},
	}

	t.Run("event first", func(t *testing.T) {
		state := &pendingPacketState{}
		state.setEventPacket(event)

		_, ok := state.finalPacket()
		assert.False(t, ok)

		state.appendBinary([]byte("a"))
		_, ok = state.finalPacket()
		assert.False(t, ok, "one of two binaries must stay pending")

		state.appendBinary([]byte("b"))
		final, ok := state.finalPacket()
		require.True(t, ok)
		assert.Equal(t, []interface{}{"evt", []byte("a"), []byte("b")}, final.Data)
		assert.Equal(t, event.Namespace, final.Namespace)

		// the buffered event itself is not modified
		assert.Equal(t, marker("placeholder", "number", float64(0)), event.Data.([]interface{})[1])
	})

	t.Run("binaries first", func(t *testing.T) {
		state := &pendingPacketState{}
		state.appendBinary([]byte("a"))
		state.appendBinary([]byte("b"))

		_, ok := state.finalPacket()
		assert.False(t, ok)

		state.setEventPacket(event)
		final, ok := state.finalPacket()
		require.True(t, ok)
		assert.Equal(t, []interface{}{"evt", []byte("a"), []byte("b")}, final.Data)
	})

	t.Run("too many binaries", func(t *testing.T) {
		state := &pendingPacketState{}
		state.setEventPacket(event)
		for _, b := range []string{"a", "b", "c"} {
			state.appendBinary([]byte(b))
		}
		_, ok := state.finalPacket()
		assert.False(t, ok)
	})
}
