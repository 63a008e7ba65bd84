package websocket

// Event names pushed to connected clients. Clients never send these; every
// mutation arrives over the HTTP API and the gateway fans the result out.
const (
	EventOnlineUsers    = "getOnlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageUpdated = "messageUpdated"
	EventMessageDeleted = "messageDeleted"
)

// Event is the wire envelope for every frame the gateway writes
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}
