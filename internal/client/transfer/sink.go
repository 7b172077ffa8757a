package transfer

import (
	"bytes"
	"os"
)

// Sink is the streaming writable target of a download. Abort is called
// instead of Close when a transfer is stopped mid-stream, so a cancelled
// download can never leave behind a truncated file that looks valid.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
	Abort() error
}

// FileSink writes a download to a local file and removes the partial file
// on abort.
type FileSink struct {
	f    *os.File
	path string
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, path: path}, nil
}

func (s *FileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *FileSink) Close() error { return s.f.Close() }

func (s *FileSink) Abort() error {
	_ = s.f.Close()
	return os.Remove(s.path)
}

// BufferSink collects a download in memory, for previews and other callers
// that need the whole decrypted payload at once.
type BufferSink struct {
	buf bytes.Buffer
}

func NewBufferSink() *BufferSink { return &BufferSink{} }

func (s *BufferSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *BufferSink) Close() error { return nil }

func (s *BufferSink) Abort() error {
	s.buf.Reset()
	return nil
}

// Bytes returns the collected payload.
func (s *BufferSink) Bytes() []byte { return s.buf.Bytes() }
