package worker

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
)

// defaultTailSize is the number of trailing output bytes kept for diagnostics.
const defaultTailSize = 4096

// outputSink forwards process output line by line to a logger and keeps
// the trailing bytes for error reports.
type outputSink struct {
	mu      sync.Mutex
	partial []byte
	tail    []byte
	maxTail int

	stream string
	log    *zap.Logger
}

func newOutputSink(stream string, log *zap.Logger) *outputSink {
	return &outputSink{
		maxTail: defaultTailSize,
		stream:  stream,
		log:     log,
	}
}

func (s *outputSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendTail(p)

	s.partial = append(s.partial, p...)
	for {
		idx := bytes.IndexByte(s.partial, '\n')
		if idx < 0 {
			break
		}

		s.emit(s.partial[:idx])
		s.partial = s.partial[idx+1:]
	}

	return len(p), nil
}

// Flush emits a trailing line that was not terminated by a newline.
func (s *outputSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.partial) > 0 {
		s.emit(s.partial)
		s.partial = nil
	}
}

// Tail returns the trailing output of the stream.
func (s *outputSink) Tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return string(s.tail)
}

func (s *outputSink) appendTail(p []byte) {
	s.tail = append(s.tail, p...)
	if over := len(s.tail) - s.maxTail; over > 0 {
		s.tail = s.tail[over:]
	}
}

func (s *outputSink) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}

	s.log.Debug("worker output",
		zap.String("stream", s.stream),
		zap.ByteString("line", line),
	)
}
