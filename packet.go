package siohub

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ramory-l/siohub/engineio"
)

// json renders payloads deterministically: map keys sorted, no HTML or
// slash escaping.
var json = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// payloadPattern finds the first bracket- or brace-delimited run. It is
// applied before any header field is read since the payload may itself
// contain digits, slashes and commas.
var payloadPattern = regexp.MustCompile(`(?s)(\[.*\])|(\{.*\})`)

const (
	DefaultNamespace = "/"

	attachmentSeparator = '-'
	namespacePrefix     = '/'
	namespaceSeparator  = ','
)

// PacketType represents Socket.IO packet types
type PacketType int

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck
)

// ParsePacketType maps a control digit to its packet type.
func ParsePacketType(b byte) (PacketType, error) {
	if b < '0' || b > '6' {
		return 0, fmt.Errorf("%w: unknown packet type %q", ErrInvalidPacketFormat, b)
	}
	return PacketType(b - '0'), nil
}

// Byte returns the control digit of the packet type.
func (pt PacketType) Byte() byte {
	return byte(pt) + '0'
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeConnect:
		return "connect"
	case PacketTypeDisconnect:
		return "disconnect"
	case PacketTypeEvent:
		return "event"
	case PacketTypeAck:
		return "ack"
	case PacketTypeConnectError:
		return "connect_error"
	case PacketTypeBinaryEvent:
		return "binary_event"
	case PacketTypeBinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}

// Packet represents a Socket.IO packet. It always travels inside an
// Engine.IO message frame.
type Packet struct {
	Type        PacketType
	Namespace   string
	Attachments int
	ID          *int
	Data        interface{}
}

// DecodePacket decodes a Socket.IO packet from its text form.
func DecodePacket(text string) (*Packet, error) {
	packet := &Packet{Namespace: DefaultNamespace}

	if loc := payloadPattern.FindStringIndex(text); loc != nil {
		if err := json.UnmarshalFromString(text[loc[0]:loc[1]], &packet.Data); err != nil {
			return nil, fmt.Errorf("%w: payload: %v", ErrInvalidPacketFormat, err)
		}
		text = text[:loc[0]] + text[loc[1]:]
	}

	if len(text) == 0 {
		return nil, fmt.Errorf("%w: missing packet type", ErrInvalidPacketFormat)
	}
	packetType, err := ParsePacketType(text[0])
	if err != nil {
		return nil, err
	}
	packet.Type = packetType
	text = text[1:]

	if digits := leadingDigits(text); digits > 0 && digits < len(text) {
		switch text[digits] {
		case attachmentSeparator:
			packet.Attachments, _ = strconv.Atoi(text[:digits])
			text = text[digits+1:]
		case namespacePrefix:
			// digits ahead of a namespace without a separator carry no field
			text = text[digits:]
		}
	}

	if len(text) > 0 && text[0] == namespacePrefix {
		if end := strings.IndexByte(text, namespaceSeparator); end >= 0 {
			packet.Namespace = text[:end]
			text = text[end+1:]
		} else {
			packet.Namespace = text
			text = ""
		}
	}

	if id, err := strconv.Atoi(text); err == nil {
		packet.ID = &id
	}

	return packet, nil
}

// PacketFromFrame unwraps a Socket.IO packet from an Engine.IO frame.
func PacketFromFrame(frame *engineio.Packet) (*Packet, error) {
	if frame == nil || frame.Type != engineio.PacketTypeMessage || frame.Binary {
		return nil, ErrInvalidEncapsulatingPacket
	}
	return DecodePacket(string(frame.Data))
}

// Encode encodes a Socket.IO packet to string
func (p *Packet) Encode() (string, error) {
	var builder strings.Builder

	builder.WriteByte(p.Type.Byte())

	if p.Attachments > 0 {
		builder.WriteString(strconv.Itoa(p.Attachments))
		builder.WriteByte(attachmentSeparator)
	}

	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		builder.WriteString(p.Namespace)
		if p.Data != nil || p.ID != nil {
			builder.WriteByte(namespaceSeparator)
		}
	}

	if p.ID != nil {
		builder.WriteString(strconv.Itoa(*p.ID))
	}

	if p.Data != nil {
		data, err := json.MarshalToString(p.Data)
		if err != nil {
			return "", fmt.Errorf("failed to marshal packet data: %w", err)
		}
		builder.WriteString(data)
	}

	return builder.String(), nil
}

// Frame encodes the packet into an Engine.IO message frame.
func (p *Packet) Frame() (*engineio.Packet, error) {
	text, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return engineio.NewTextMessage(text), nil
}

// Event splits an event payload into its name and arguments.
func (p *Packet) Event() (string, []interface{}, bool) {
	args, ok := p.Data.([]interface{})
	if !ok || len(args) == 0 {
		return "", nil, false
	}
	event, ok := args[0].(string)
	if !ok {
		return "", nil, false
	}
	return event, args[1:], true
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
