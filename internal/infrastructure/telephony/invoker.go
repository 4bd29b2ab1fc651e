package telephony

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Invoker opens a telephony or deep-link URI on the device. Failures are
// absorbed by callers: an unreachable target degrades to a locally rendered
// fallback message, never an error.
type Invoker interface {
	// Open attempts to open the URI; returns whether the handoff succeeded
	Open(ctx context.Context, uri string) bool
}

// loggingInvoker is the default implementation. The real handoff happens in
// the mobile shell; the backend records the intent and reports success so
// dispatch latency stays bounded by local work only.
type loggingInvoker struct {
	logger *zap.Logger
}

// NewInvoker creates the default deep-link invoker
func NewInvoker(logger *zap.Logger) Invoker {
	return &loggingInvoker{logger: logger}
}

func (i *loggingInvoker) Open(ctx context.Context, uri string) bool {
	i.logger.Info("deep link invoked", zap.String("uri", uri))
	return true
}

// StubInvoker is a test double recording every URI it was asked to open
type StubInvoker struct {
	mu     sync.Mutex
	Opened []string
	// FailAll makes every Open report failure, exercising fallbacks
	FailAll bool
	// Delay simulates a slow external handoff
	Delay time.Duration
}

func (s *StubInvoker) Open(ctx context.Context, uri string) bool {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opened = append(s.Opened, uri)
	return !s.FailAll
}

// OpenedURIs returns a copy of the recorded URIs
func (s *StubInvoker) OpenedURIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Opened))
	copy(out, s.Opened)
	return out
}
