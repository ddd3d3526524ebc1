package pty

import (
	"context"
	"io"
	"strings"

	"github.com/muesli/cancelreader"
	"github.com/peterje/ptyhost/internal/monitoring"
	"go.uber.org/zap"
)

const readChunkSize = 4096

// readerLoop turns one session's output into data events followed by a
// single exit event.
type readerLoop struct {
	id        string
	dataEvent string
	exitEvent string
	sink      EventSink
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// run blocks until the reader hits EOF, fails, or ctx is cancelled. It then
// closes r and master. The exit event is always the last thing emitted.
func (l *readerLoop) run(ctx context.Context, r cancelreader.CancelReader, master io.Closer) {
	stop := context.AfterFunc(ctx, func() { r.Cancel() })
	defer func() {
		stop()
		r.Close()
		master.Close()
		l.sink.Emit(l.exitEvent, nil)
		l.metrics.RecordEvent("exit")
		l.logger.Debug("reader loop finished", zap.String("terminal", l.id))
	}()

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && ctx.Err() == nil {
			l.metrics.RecordRead(n)
			l.sink.Emit(l.dataEvent, DataPayload{Data: decodeLossy(buf[:n])})
			l.metrics.RecordEvent("data")
		}
		if err != nil {
			l.logger.Debug("pty read ended", zap.String("terminal", l.id), zap.Error(err))
			return
		}
		if n == 0 || ctx.Err() != nil {
			return
		}
	}
}

// decodeLossy decodes UTF-8, replacing every invalid sequence with U+FFFD.
func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
