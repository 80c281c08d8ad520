// internal/handlers/ws_codes.go
package handlers

// Subprotocol is the WebSocket subprotocol clients of the session stream must request.
const Subprotocol = "uno"

// Custom WebSocket close codes used by the session stream.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
)
