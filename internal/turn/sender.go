package turn

// Sender is the carrier WS connection as seen by the turn pipeline: it
// writes a pre-built frame and reports whether the connection has closed.
// Kept minimal and decoupled from gorilla/websocket so the pipeline has no
// import-cycle on the gateway package.
type Sender interface {
	Send(frame []byte) error
	Closed() bool
}
