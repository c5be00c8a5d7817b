package siohub

// Error is a constant error value that can be matched with errors.Is.
type Error string

func (e Error) Error() string { return string(e) }

// All of the errors the protocol core can return
const (
	ErrInvalidPacketFormat        Error = "invalid packet format"
	ErrInvalidEncapsulatingPacket Error = "invalid encapsulating packet"
	ErrInvalidNamespace           Error = "Invalid namespace"
	ErrSocketClosed               Error = "socket is disconnected"
)
