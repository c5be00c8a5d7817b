// Package siohub provides the protocol core of a Socket.IO style
// publish/subscribe server: the packet codec, binary attachment
// reassembly, namespaces with rooms, and the dispatcher that routes
// transport frames to sockets.
//
// The transport is pluggable through the Engine interface. The engineio
// subpackage supplies a WebSocket-only Engine.IO v4 implementation, used
// by default.
//
// # Quick Start
//
//	server := siohub.NewServer(nil)
//
//	server.OnConnection(func(socket *siohub.Socket) {
//	    log.Printf("Client connected: %s", socket.ID())
//
//	    socket.On("message", func(args ...interface{}) {
//	        socket.Emit("response", "Message received!")
//	    })
//
//	    socket.OnDisconnect(func(reason siohub.DisconnectReason) {
//	        log.Printf("Client disconnected: %s", reason)
//	    })
//	})
//
//	http.Handle("/socket.io/", server)
//	http.ListenAndServe(":3000", nil)
//
// # Namespaces and middleware
//
// Of registers a namespace or returns the existing one. Middleware runs in
// order when a client connects; the first error rejects the client with a
// connect_error packet carrying the error text, and the connection is
// closed.
//
//	admin := server.Of("/admin")
//	admin.UseFunc(func(ctx context.Context, socket *siohub.Socket) error {
//	    return errors.New("not authorized")
//	})
//
// # Rooms
//
// Every socket is a member of the room named after its id.
//
//	socket.Join("room1")
//	server.To("room1").Emit("news", "Hello room!")
//	server.Except("room1").Emit("news", "Hello everyone else!")
//
// When To and Except are combined only the To rooms apply.
//
// # Binary data
//
// []byte arguments are sent as binary attachments and arrive in handlers as
// []byte.
//
// # Thread Safety
//
// Namespaces, sockets and broadcast operators are goroutine-safe. Frames
// from one client are handled in arrival order on a goroutine dedicated to
// that client, so event handlers for one client never run concurrently.
// Acknowledgement callbacks are not supported.
package siohub
