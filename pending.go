package siohub

// pendingPacketState buffers a binary event and the binary frames that
// complete it. A nil state is an empty tracker; binaries may arrive before
// the event packet does.
type pendingPacketState struct {
	eventPacket *Packet
	binaries    [][]byte
}

func (s *pendingPacketState) setEventPacket(packet *Packet) {
	s.eventPacket = packet
}

func (s *pendingPacketState) appendBinary(data []byte) {
	s.binaries = append(s.binaries, data)
}

// finalPacket returns the event with every placeholder replaced, in
// encounter order, by the collected binaries. It reports false while the
// marker count and the number of binaries differ.
func (s *pendingPacketState) finalPacket() (*Packet, bool) {
	if s.eventPacket == nil || len(s.binaries) == 0 {
		return nil, false
	}

	data, ok := reconstructPayload(s.eventPacket.Data, s.binaries)
	if !ok {
		return nil, false
	}

	final := *s.eventPacket
	final.Data = data
	return &final, true
}
