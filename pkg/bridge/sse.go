package bridge

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// maxLineBytes bounds one SSE line. Frames are base64 or hex text, so a
// megabyte covers any event the upstream produces.
const maxLineBytes = 1 << 20

type lineResult struct {
	line string
	err  error
}

// frameReader assembles logical SSE frames from a response body. The
// upstream interleaves data: lines with blank-line delimiters and may
// fragment one frame's payload across several data: lines; a blank line
// closes the accumulated frame.
type frameReader struct {
	lines chan lineResult
	done  chan struct{}
	once  sync.Once
}

func newFrameReader(body io.Reader) *frameReader {
	fr := &frameReader{
		lines: make(chan lineResult, 16),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(fr.lines)
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case fr.lines <- lineResult{line: sc.Text()}:
			case <-fr.done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case fr.lines <- lineResult{err: err}:
			case <-fr.done:
			}
		}
	}()
	return fr
}

// stop releases the reader goroutine even when buffered lines remain.
// Closing the response body alone cannot unblock a send on a full
// channel. Safe to call more than once.
func (fr *frameReader) stop() {
	fr.once.Do(func() { close(fr.done) })
}

// next returns the next complete frame payload. done reports a [DONE]
// terminator or clean end of stream. A read pause longer than stall
// returns a StallError.
func (fr *frameReader) next(ctx context.Context, stall time.Duration) (payload string, done bool, err error) {
	var buf strings.Builder

	timer := time.NewTimer(stall)
	defer timer.Stop()

	for {
		select {
		case res, ok := <-fr.lines:
			if !ok {
				// Clean end of stream. A half-accumulated frame is
				// dropped, matching the upstream's own truncation
				// behavior.
				return "", true, nil
			}
			if res.err != nil {
				return "", false, res.err
			}

			line := res.line
			if data, isData := strings.CutPrefix(line, "data:"); isData {
				data = strings.TrimSpace(data)
				if data == "" {
					continue
				}
				if data == "[DONE]" {
					return "", true, nil
				}
				buf.WriteString(data)
				continue
			}
			if strings.TrimSpace(line) == "" && buf.Len() > 0 {
				return buf.String(), false, nil
			}
			// Comment lines and other field names are ignored.

		case <-timer.C:
			return "", false, &StallError{Window: stall}

		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
}
