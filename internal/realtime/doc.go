// Package realtime is the websocket transport for pairchat.
//
// A client connects to /ws with a JWT and exchanges JSON frames:
//
//	-> {"type":"join","requestId":"1","conversationId":"c1"}
//	<- {"type":"joined","requestId":"1","conversationId":"c1"}
//	-> {"type":"send","requestId":"2","conversationId":"c1","content":"hi","messageType":"text"}
//	<- {"type":"ReceiveMessage","version":1,"message":{...}}   to every joined connection
//	<- {"type":"sent","requestId":"2","message":{...}}           to the sender
//
// A refused join answers join_rejected whether the conversation is missing or
// the user is not a participant. Send failures answer an error frame with a
// stable code and are never broadcast.
//
// Each connection has one reader (the handler goroutine) and one writer
// (Connection.writeLoop). Outbound frames queue on a bounded buffer; a client
// that lets it fill is disconnected.
package realtime
