package packstream

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
)

// recordingHandler captures every record's message for assertion,
// standing in for a real slog.Handler (JSON/text) the way a test double
// for an ambient concern should: observe, don't format.
type recordingHandler struct {
	messages *[]string
}

func newRecordingHandler() (slog.Handler, *[]string) {
	msgs := &[]string{}
	return recordingHandler{messages: msgs}, msgs
}

func (h recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.messages = append(*h.messages, r.Message)
	return nil
}

func (h recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordingHandler) WithGroup(string) slog.Handler      { return h }

type LoggingTestSuite struct {
	suite.Suite
}

func (s *LoggingTestSuite) TestByteSourceLogsBufferRefill() {
	handler, msgs := newRecordingHandler()
	src, err := NewByteSource(bytes.NewReader([]byte{1, 2, 3, 4, 5}), Config{BufferSize: 2})
	s.Require().NoError(err)
	src.WithLogger(slog.New(handler))

	_, err = src.ReadExact(5)
	s.Require().NoError(err)
	s.Assert().Contains(*msgs, "packstream: refilled reassembly buffer")
}

func (s *LoggingTestSuite) TestByteSourceLogsOversizeStreaming() {
	handler, msgs := newRecordingHandler()
	payload := bytes.Repeat([]byte{0x5C}, 64)
	src, err := NewByteSource(bytes.NewReader(payload), Config{BufferSize: 8})
	s.Require().NoError(err)
	src.WithLogger(slog.New(handler))

	_, err = src.ReadExact(64)
	s.Require().NoError(err)
	s.Assert().Contains(*msgs, "packstream: streaming oversize payload directly from channel")
}

func (s *LoggingTestSuite) TestByteSourceLogsReset() {
	handler, msgs := newRecordingHandler()
	src, err := NewByteSource(bytes.NewReader([]byte{1, 2, 3}), DefaultConfig())
	s.Require().NoError(err)
	src.WithLogger(slog.New(handler))

	src.Reset(bytes.NewReader([]byte{9, 9}))
	s.Assert().Contains(*msgs, "packstream: source reset to new channel")
}

func (s *LoggingTestSuite) TestByteSourceNopLoggerDoesNotPanicOrRecord() {
	src, err := NewByteSource(bytes.NewReader([]byte{1, 2, 3, 4, 5}), Config{BufferSize: 2})
	s.Require().NoError(err)
	_, err = src.ReadExact(5)
	s.Require().NoError(err)

	// WithLogger(nil) restores the no-op default without panicking.
	src.WithLogger(nil)
	_, err = src.ReadExact(0)
	s.Require().NoError(err)
}

func (s *LoggingTestSuite) TestByteSinkLogsOversizeWrite() {
	handler, msgs := newRecordingHandler()
	var buf bytes.Buffer
	sink, err := NewByteSink(&buf, Config{BufferSize: 8})
	s.Require().NoError(err)
	sink.WithLogger(slog.New(handler))

	payload := bytes.Repeat([]byte{0x7A}, 32)
	_, err = sink.Write(payload)
	s.Require().NoError(err)
	s.Assert().Contains(*msgs, "packstream: streaming oversize write directly to channel")
}

func TestLogging(t *testing.T) {
	suite.Run(t, new(LoggingTestSuite))
}
