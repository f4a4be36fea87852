package sse

import (
	"bytes"
	"strconv"
)

// Event types written on the "event:" line. Registry events use their kind
// ("registered", "transition", ...) as the type.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive is used for keep-alive comments.
	EventTypeKeepAlive = "keepalive"

	// EventTypeMessage is the default type for untyped broadcasts.
	EventTypeMessage = "message"
)

// frame encodes one SSE message. Each line of data becomes its own "data:"
// line so multi-line payloads survive the wire format.
func frame(eventType string, id uint64, data []byte) []byte {
	if eventType == "" {
		eventType = EventTypeMessage
	}
	var b bytes.Buffer
	b.WriteString("event: ")
	b.WriteString(eventType)
	b.WriteByte('\n')
	if id > 0 {
		b.WriteString("id: ")
		b.WriteString(strconv.FormatUint(id, 10))
		b.WriteByte('\n')
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		b.WriteString("data: ")
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}
