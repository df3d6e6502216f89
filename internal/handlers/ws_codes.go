// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room feed.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidRoomIDError  = 3003 // Room in the feed URL does not exist.
)
