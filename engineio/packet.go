package engineio

import (
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PacketType represents Engine.IO packet types
type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop
)

// Packet represents an Engine.IO packet. Binary packets are always messages
// and travel as raw WebSocket binary frames without a type prefix.
type Packet struct {
	Type   PacketType
	Data   []byte
	Binary bool
}

// NewTextMessage wraps a protocol text frame in a message packet.
func NewTextMessage(text string) *Packet {
	return &Packet{Type: PacketTypeMessage, Data: []byte(text)}
}

// NewBinaryMessage wraps raw bytes in a binary message packet.
func NewBinaryMessage(data []byte) *Packet {
	return &Packet{Type: PacketTypeMessage, Data: data, Binary: true}
}

// Encode encodes the packet to bytes
func (p *Packet) Encode() []byte {
	if p.Binary {
		return p.Data
	}
	result := make([]byte, 0, len(p.Data)+1)
	result = append(result, byte('0'+p.Type))
	result = append(result, p.Data...)
	return result
}

// DecodePacket decodes a text frame into a packet
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty packet")
	}

	typeChar := data[0]
	if typeChar < '0' || typeChar > '6' {
		return nil, fmt.Errorf("invalid packet type: %c", typeChar)
	}

	packet := &Packet{
		Type: PacketType(typeChar - '0'),
	}

	if len(data) > 1 {
		packet.Data = data[1:]
	}

	return packet, nil
}

// HandshakeData represents the Engine.IO handshake response
type HandshakeData struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// EncodeHandshake creates an open packet with handshake data
func EncodeHandshake(sid string, config *Config) ([]byte, error) {
	data := HandshakeData{
		SID:          sid,
		Upgrades:     []string{},
		PingInterval: config.PingInterval,
		PingTimeout:  config.PingTimeout,
		MaxPayload:   config.MaxPayload,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	packet := &Packet{
		Type: PacketTypeOpen,
		Data: jsonData,
	}

	return packet.Encode(), nil
}

// String returns the packet type as a string
func (pt PacketType) String() string {
	switch pt {
	case PacketTypeOpen:
		return "open"
	case PacketTypeClose:
		return "close"
	case PacketTypePing:
		return "ping"
	case PacketTypePong:
		return "pong"
	case PacketTypeMessage:
		return "message"
	case PacketTypeUpgrade:
		return "upgrade"
	case PacketTypeNoop:
		return "noop"
	default:
		return "unknown(" + strconv.Itoa(int(pt)) + ")"
	}
}

// DisconnectReason explains why a session ended.
type DisconnectReason int

const (
	// ReasonForcefully means the server closed the session.
	ReasonForcefully DisconnectReason = iota
	ReasonPingTimeout
	ReasonInvalidPacket
	ReasonInvalidSession
	ReasonInvalidState
	// ReasonTransportClose means the peer went away or sent a close packet.
	ReasonTransportClose
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonForcefully:
		return "forcefully"
	case ReasonPingTimeout:
		return "ping timeout"
	case ReasonInvalidPacket:
		return "invalid packet"
	case ReasonInvalidSession:
		return "invalid session"
	case ReasonInvalidState:
		return "invalid state"
	case ReasonTransportClose:
		return "transport close"
	default:
		return "unknown(" + strconv.Itoa(int(r)) + ")"
	}
}
