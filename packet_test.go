package siohub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramory-l/siohub/engineio"
)

func intPtr(i int) *int { return &i }

func TestDecodePacket(t *testing.T) {
	var tests = []struct {
		name string
		in   string
		want *Packet
	}{
		{
			name: "event on default namespace",
			in:   `2["chat","hi"]`,
			want: &Packet{Type: PacketTypeEvent, Namespace: "/", Data: []interface{}{"chat", "hi"}},
		},
		{
			name: "connect error on custom namespace",
			in:   `42/admin,["err"]`,
			want: &Packet{Type: PacketTypeConnectError, Namespace: "/admin", Data: []interface{}{"err"}},
		},
		{
			name: "bare connect",
			in:   `0`,
			want: &Packet{Type: PacketTypeConnect, Namespace: "/"},
		},
		{
			name: "connect to namespace without payload",
			in:   `0/chat`,
			want: &Packet{Type: PacketTypeConnect, Namespace: "/chat"},
		},
		{
			name: "event with ack id",
			in:   `212["ping"]`,
			want: &Packet{Type: PacketTypeEvent, Namespace: "/", ID: intPtr(12), Data: []interface{}{"ping"}},
		},
		{
			name: "event with namespace and ack id",
			in:   `2/chat,7["ping",{"a":1}]`,
			want: &Packet{
				Type:      PacketTypeEvent,
				Namespace: "/chat",
				ID:        intPtr(7),
				Data:      []interface{}{"ping", map[string]interface{}{"a": float64(1)}},
			},
		},
		{
			name: "binary event header",
			in:   `51-/ns,["evt",{"placeholder":true,"number":0}]`,
			want: &Packet{
				Type:        PacketTypeBinaryEvent,
				Namespace:   "/ns",
				Attachments: 1,
				Data: []interface{}{
					"evt",
					map[string]interface{}{"placeholder": true, "number": float64(0)},
				},
			},
		},
		{
			name: "payload carrying header-like characters",
			in:   `2["a/b,1-2",{"x":"/y,3"}]`,
			want: &Packet{
				Type:      PacketTypeEvent,
				Namespace: "/",
				Data:      []interface{}{"a/b,1-2", map[string]interface{}{"x": "/y,3"}},
			},
		},
		{
			name: "object payload",
			in:   `0/admin,{"token":"abc"}`,
			want: &Packet{Type: PacketTypeConnect, Namespace: "/admin", Data: map[string]interface{}{"token": "abc"}},
		},
		{
			name: "empty array payload",
			in:   `2[]`,
			want: &Packet{Type: PacketTypeEvent, Namespace: "/", Data: []interface{}{}},
		},
		{
			name: "ack with namespace and no payload",
			in:   `3/nsp,5`,
			want: &Packet{Type: PacketTypeAck, Namespace: "/nsp", ID: intPtr(5)},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have, err := DecodePacket(test.in)
			require.NoError(t, err)
			assert.Equal(t, test.want, have)
		})
	}
}

func TestDecodePacketErrors(t *testing.T) {
	for _, in := range []string{``, `9`, `x["a"]`, `["a"]`, `2{"a" 1}`} {
		_, err := DecodePacket(in)
		assert.ErrorIs(t, err, ErrInvalidPacketFormat, "input %q", in)
	}
}

func TestPacketFromFrame(t *testing.T) {
	packet, err := PacketFromFrame(engineio.NewTextMessage(`2["chat","hi"]`))
	require.NoError(t, err)
	assert.Equal(t, PacketTypeEvent, packet.Type)

	_, err = PacketFromFrame(engineio.NewBinaryMessage([]byte{1, 2}))
	assert.ErrorIs(t, err, ErrInvalidEncapsulatingPacket)

	_, err = PacketFromFrame(&engineio.Packet{Type: engineio.PacketTypePing, Data: []byte("2")})
	assert.ErrorIs(t, err, ErrInvalidEncapsulatingPacket)

	_, err = PacketFromFrame(nil)
	assert.ErrorIs(t, err, ErrInvalidEncapsulatingPacket)
}

func TestEncodePacket(t *testing.T) {
	var tests = []struct {
		name   string
		packet *Packet
		want   string
	}{
		{
			name:   "sorted keys and unescaped slashes",
			packet: &Packet{Type: PacketTypeEvent, Namespace: "/", Data: []interface{}{"msg", map[string]interface{}{"b": 1, "a": "x/y"}}},
			want:   `2["msg",{"a":"x/y","b":1}]`,
		},
		{
			name:   "handshake",
			packet: &Packet{Type: PacketTypeConnect, Namespace: "/chat", Data: map[string]interface{}{"sid": "abc"}},
			want:   `0/chat,{"sid":"abc"}`,
		},
		{
			name:   "namespace without payload",
			packet: &Packet{Type: PacketTypeDisconnect, Namespace: "/chat"},
			want:   `1/chat`,
		},
		{
			name: "binary event",
			packet: &Packet{
				Type:        PacketTypeBinaryEvent,
				Namespace:   "/ns",
				Attachments: 1,
				Data:        []interface{}{"evt", map[string]interface{}{"_placeholder": true, "num": 0}},
			},
			want: `51-/ns,["evt",{"_placeholder":true,"num":0}]`,
		},
		{
			name:   "ack id",
			packet: &Packet{Type: PacketTypeAck, Namespace: "/", ID: intPtr(3), Data: []interface{}{"ok"}},
			want:   `33["ok"]`,
		},
		{
			name:   "ack id on namespace without payload",
			packet: &Packet{Type: PacketTypeAck, Namespace: "/nsp", ID: intPtr(5)},
			want:   `3/nsp,5`,
		},
		{
			name:   "empty namespace is the default",
			packet: &Packet{Type: PacketTypeConnect},
			want:   `0`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have, err := test.packet.Encode()
			require.NoError(t, err)
			assert.Equal(t, test.want, have)
		})
	}
}

func TestEncodeUnsupportedPayload(t *testing.T) {
	_, err := (&Packet{Type: PacketTypeEvent, Data: []interface{}{make(chan int)}}).Encode()
	assert.Error(t, err)
}

func TestPacketRoundTrip(t *testing.T) {
	packets := []*Packet{
		{Type: PacketTypeEvent, Namespace: "/", Data: []interface{}{"chat", "hi"}},
		{Type: PacketTypeConnect, Namespace: "/admin", Data: map[string]interface{}{"sid": "x/1"}},
		{Type: PacketTypeDisconnect, Namespace: "/admin"},
		{Type: PacketTypeAck, Namespace: "/", ID: intPtr(12), Data: []interface{}{float64(1)}},
		{Type: PacketTypeAck, Namespace: "/nsp", ID: intPtr(5)},
		{Type: PacketTypeConnectError, Namespace: "/", Data: map[string]interface{}{"message": "a/b"}},
		{
			Type:        PacketTypeBinaryEvent,
			Namespace:   "/files",
			Attachments: 2,
			ID:          intPtr(9),
			Data: []interface{}{
				"upload",
				map[string]interface{}{"_placeholder": true, "num": float64(0)},
				map[string]interface{}{"_placeholder": true, "num": float64(1)},
			},
		},
		{Type: PacketTypeBinaryAck, Namespace: "/", Attachments: 1, ID: intPtr(4), Data: []interface{}{map[string]interface{}{"_placeholder": true, "num": float64(0)}}},
	}

	for _, packet := range packets {
		encoded, err := packet.Encode()
		require.NoError(t, err)

		decoded, err := DecodePacket(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, packet, decoded, encoded)
	}
}

func TestPacketEvent(t *testing.T) {
	event, args, ok := (&Packet{Data: []interface{}{"chat", "hi", float64(2)}}).Event()
	assert.True(t, ok)
	assert.Equal(t, "chat", event)
	assert.Equal(t, []interface{}{"hi", float64(2)}, args)

	_, _, ok = (&Packet{Data: []interface{}{float64(1)}}).Event()
	assert.False(t, ok)

	_, _, ok = (&Packet{Data: map[string]interface{}{"a": "b"}}).Event()
	assert.False(t, ok)
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "binary_event", PacketTypeBinaryEvent.String())
	assert.Equal(t, "unknown", PacketType(42).String())
	assert.Equal(t, byte('4'), PacketTypeConnectError.Byte())
}
