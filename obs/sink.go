package obs

import (
	"fmt"
	"os"
	"sync"
)

// Sink receives structured log records for export, replacing the original
// platform's event-emitter-style observability with an explicit interface:
// one implementation per destination, no global subscriber list.
type Sink interface {
	Emit(Record)
}

// StdoutSink writes a terse line per record to stdout.
type StdoutSink struct{ mu sync.Mutex }

func NewStdoutSink() *StdoutSink { return &StdoutSink{} }

func (s *StdoutSink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stdout, "%s [%s] %s\n", r.At.Format("15:04:05.000"), r.Level, r.Message)
}

// FileSink appends records to an open file handle.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileSink(f *os.File) *FileSink { return &FileSink{f: f} }

func (s *FileSink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.f, "%s [%s] %s\n", r.At.Format(timeLayout), r.Level, r.Message)
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// MemorySink collects records for test assertions.
type MemorySink struct {
	mu      sync.Mutex
	Records []Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = append(s.Records, r)
}
