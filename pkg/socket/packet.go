// Package socket implements the daemon's client protocol: JSON frames
// separated by the EOT byte on a local stream, correlated requests and
// responses, and the asynchronous event stream pushed to every connection.
package socket

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/streamduck-org/streamduck/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EOT is the frame terminator: one ASCII End-Of-Transmission byte after
// every JSON object.
const EOT = 0x04

// EventType is the ty tag marking server-pushed event frames.
const EventType = "event"

// SocketAPIVersion is the protocol version reported by socket_api_version
// and compared by clients on connect.
const SocketAPIVersion = "0.2"

// SocketPacket is one frame: a request, a response or an event.
//
// Requests and responses of a kind share the same Ty; Requester is the
// client-chosen correlation id echoed verbatim on the response, absent on
// events.
type SocketPacket struct {
	Ty        string              `json:"ty"`
	Requester string              `json:"requester,omitempty"`
	Data      jsoniter.RawMessage `json:"data,omitempty"`
}

// WritePacket frames one packet onto w: the JSON object then EOT. The frame
// is assembled before writing so a partial marshal never hits the wire.
func WritePacket(w io.Writer, p SocketPacket) error {
	frame, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("packet %q: %w: %v", p.Ty, core.ErrDecode, err)
	}
	frame = append(frame, EOT)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("packet %q: %w: %v", p.Ty, core.ErrTransport, err)
	}
	return nil
}

// ReadPacket reads one EOT-terminated frame from r. EOF in the middle of a
// frame is a transport error; EOF on a frame boundary is io.EOF.
func ReadPacket(r *bufio.Reader) (SocketPacket, error) {
	frame, err := r.ReadBytes(EOT)
	if err != nil {
		if errors.Is(err, io.EOF) && len(frame) == 0 {
			return SocketPacket{}, io.EOF
		}
		return SocketPacket{}, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	frame = frame[:len(frame)-1]

	var p SocketPacket
	if err := json.Unmarshal(frame, &p); err != nil {
		return SocketPacket{}, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}
	return p, nil
}

// Error tags of the protocol's failure enum.
const (
	TagNotFound             = "not_found"
	TagInvalidArgument      = "invalid_argument"
	TagAlreadyExists        = "already_exists"
	TagConflictingOwnership = "conflicting_ownership"
	TagDecodeError          = "decode_error"
	TagTransportError       = "transport_error"
	TagUnsupported          = "unsupported"
	TagInternal             = "internal"
)

// ResultError is the tagged failure payload of a response.
type ResultError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ErrorToTag maps core error sentinels onto wire tags.
func ErrorToTag(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return TagNotFound
	case errors.Is(err, core.ErrInvalidArgument):
		return TagInvalidArgument
	case errors.Is(err, core.ErrAlreadyExists):
		return TagAlreadyExists
	case errors.Is(err, core.ErrConflictingOwnership):
		return TagConflictingOwnership
	case errors.Is(err, core.ErrDecode):
		return TagDecodeError
	case errors.Is(err, core.ErrTransport):
		return TagTransportError
	case errors.Is(err, core.ErrUnsupported):
		return TagUnsupported
	default:
		return TagInternal
	}
}
