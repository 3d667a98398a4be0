package assistant

import (
	"bufio"
	"io"
	"strings"

	"github.com/flexihub/assistant-gateway/internal/model"
)

// sseStream decodes a text/event-stream body into wire events. Each frame is
// an optional "event:" line plus one or more "data:" lines, terminated by a
// blank line. The Assistants API closes every stream with an event named
// "done" whose data is the literal [DONE].
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	// Delta frames are small but tool-output continuations can carry large
	// message payloads in a single data line.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

// Recv returns the next wire event, or io.EOF when the stream ends.
func (s *sseStream) Recv() (model.WireEvent, error) {
	var eventType string
	var data strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()

		switch {
		case line == "":
			if eventType == "" && data.Len() == 0 {
				continue // stray separator
			}
			return s.frame(eventType, data.String())

		case strings.HasPrefix(line, ":"):
			// comment / keep-alive

		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return model.WireEvent{}, err
	}
	return model.WireEvent{}, io.EOF
}

func (s *sseStream) frame(eventType, data string) (model.WireEvent, error) {
	if data == "[DONE]" || eventType == model.WireDone {
		return model.WireEvent{Type: model.WireDone}, nil
	}
	if eventType == "" {
		eventType = model.EventMessageDelta
	}
	return model.WireEvent{Type: eventType, Data: []byte(data)}, nil
}

// Close releases the underlying response body.
func (s *sseStream) Close() error {
	return s.body.Close()
}
