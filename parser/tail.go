package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/activecm/connwatch/parser/files"
	pt "github.com/activecm/connwatch/parser/parsetypes"
	"github.com/activecm/connwatch/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// maxLineLength is the longest line, without its terminator, that the
// Tailer will buffer. Longer lines are counted as rejected and skipped.
const maxLineLength = 64 * 1024

type (
	// RecordHandler consumes the records read by a Tailer, in file order.
	// Ingest returns false when the record was dropped.
	RecordHandler interface {
		Ingest(conn *pt.Conn) bool
	}

	// Tailer reads a connection log from the beginning and then keeps
	// following it as new lines are appended
	Tailer struct {
		bytesRead   int64
		ingested    int64
		dropped     int64
		truncations int64
		reopens     int64

		path         string
		handler      RecordHandler
		log          *log.Logger
		counter      *files.LineCounter
		pollInterval time.Duration
		maxBackoff   time.Duration
		caughtUp     chan struct{}
	}

	// TailStats is a point in time copy of a Tailer's totals
	TailStats struct {
		Lines       files.LineStats
		BytesRead   int64
		Ingested    int64
		Dropped     int64
		Truncations int64
		Reopens     int64
	}

	// tailState tracks the open file being followed
	tailState struct {
		file    *os.File
		info    os.FileInfo
		reader  *bufio.Reader
		offset  int64
		partial []byte
		// discarding is set while skipping the rest of an overlong line
		discarding bool
	}
)

// NewTailer creates a Tailer for the log at path. New bytes are polled for
// every pollInterval. Read errors are retried with a backoff which starts at
// pollInterval and doubles up to maxBackoff.
func NewTailer(path string, handler RecordHandler, pollInterval, maxBackoff time.Duration, logger *log.Logger) *Tailer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxBackoff < pollInterval {
		maxBackoff = pollInterval
	}
	return &Tailer{
		path:         path,
		handler:      handler,
		log:          logger,
		counter:      files.NewLineCounter(path, logger),
		pollInterval: pollInterval,
		maxBackoff:   maxBackoff,
		caughtUp:     make(chan struct{}),
	}
}

// CaughtUp is closed once the lines present when the Tailer started have
// all been read
func (t *Tailer) CaughtUp() <-chan struct{} {
	return t.caughtUp
}

// Stats returns the current totals
func (t *Tailer) Stats() TailStats {
	return TailStats{
		Lines:       t.counter.Stats(),
		BytesRead:   atomic.LoadInt64(&t.bytesRead),
		Ingested:    atomic.LoadInt64(&t.ingested),
		Dropped:     atomic.LoadInt64(&t.dropped),
		Truncations: atomic.LoadInt64(&t.truncations),
		Reopens:     atomic.LoadInt64(&t.reopens),
	}
}

// Run reads the log until ctx is cancelled. An error is returned right away
// if the log cannot be opened. Otherwise Run only returns ctx.Err().
func (t *Tailer) Run(ctx context.Context) error {
	state, err := t.open(0, nil)
	if err != nil {
		return err
	}
	defer func() {
		state.file.Close()
	}()

	t.log.WithFields(log.Fields{
		"file":  t.path,
		"bytes": state.info.Size(),
	}).Info("Reading connection log")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := state.reader.ReadSlice('\n')
		if len(line) > 0 {
			state.offset += int64(len(line))
			atomic.AddInt64(&t.bytesRead, int64(len(line)))
		}

		if readErr == nil {
			t.finishLine(state, line)
			continue
		}

		// a line without its terminator may still be getting written
		t.bufferPartial(state, line)
		if readErr == bufio.ErrBufferFull {
			continue
		}

		if readErr != io.EOF {
			t.log.WithFields(log.Fields{
				"file":  t.path,
				"error": readErr.Error(),
			}).Error("Could not read from connection log")
			if state, err = t.recover(ctx, state); err != nil {
				return err
			}
			continue
		}

		t.markCaughtUp(state)

		if err := t.checkFile(state); err != nil {
			t.log.WithFields(log.Fields{
				"file":  t.path,
				"error": err.Error(),
			}).Error("Lost track of connection log")
			if state, err = t.recover(ctx, state); err != nil {
				return err
			}
			continue
		}

		if err := sleepContext(ctx, t.pollInterval); err != nil {
			return err
		}
	}
}

// finishLine handles the terminated line which ends with chunk
func (t *Tailer) finishLine(state *tailState, chunk []byte) {
	if state.discarding {
		state.discarding = false
		return
	}
	if len(state.partial)+len(chunk)-1 > maxLineLength {
		state.partial = nil
		t.rejectLong(state)
		return
	}
	if len(state.partial) > 0 {
		chunk = append(state.partial, chunk...)
		state.partial = nil
	}
	t.handle(chunk)
}

// bufferPartial holds on to an unterminated chunk until the rest of its
// line arrives. Once a line outgrows maxLineLength it is rejected and the
// remainder is skipped up to the next terminator.
func (t *Tailer) bufferPartial(state *tailState, chunk []byte) {
	if state.discarding || len(chunk) == 0 {
		return
	}
	if len(state.partial)+len(chunk) > maxLineLength {
		state.partial = nil
		state.discarding = true
		t.rejectLong(state)
		return
	}
	state.partial = append(state.partial, chunk...)
}

func (t *Tailer) rejectLong(state *tailState) {
	t.counter.Reject(errors.Wrapf(files.ErrLineLength, "line exceeds %d bytes at offset %d", maxLineLength, state.offset))
}

// handle parses a complete line and hands the record off
func (t *Tailer) handle(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	conn := t.counter.Parse(string(line))
	if conn == nil {
		return
	}
	if t.handler.Ingest(conn) {
		atomic.AddInt64(&t.ingested, 1)
		return
	}
	atomic.AddInt64(&t.dropped, 1)
	t.log.WithFields(log.Fields{
		"file": t.path,
		"ts":   conn.Time.Format(util.DisplayFormat),
	}).Debug("Dropped connection outside of the current window")
}

func (t *Tailer) markCaughtUp(state *tailState) {
	select {
	case <-t.caughtUp:
	default:
		close(t.caughtUp)
		t.log.WithFields(log.Fields{
			"file":  t.path,
			"bytes": state.offset,
			"lines": t.counter.Stats().Lines,
		}).Info("Caught up with connection log, following new lines")
	}
}

// open opens the log and positions it at offset. When previous is given and
// the path no longer refers to the same file, reading starts over at 0.
func (t *Tailer) open(offset int64, previous os.FileInfo) (*tailState, error) {
	file, err := os.Open(t.path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", t.path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "could not stat %s", t.path)
	}

	if previous != nil && !os.SameFile(previous, info) {
		offset = 0
	}
	if offset > info.Size() {
		offset = 0
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "could not seek in %s", t.path)
		}
	}

	return &tailState{
		file:   file,
		info:   info,
		reader: bufio.NewReader(file),
		offset: offset,
	}, nil
}

// checkFile notices when the log was truncated in place or replaced by
// a new file at the same path
func (t *Tailer) checkFile(state *tailState) error {
	pathInfo, err := os.Stat(t.path)
	if err != nil {
		return errors.Wrapf(err, "could not stat %s", t.path)
	}

	if !os.SameFile(state.info, pathInfo) {
		t.log.WithFields(log.Fields{
			"file": t.path,
		}).Warn("Connection log was replaced, reading the new file from the start")
		next, err := t.open(0, nil)
		if err != nil {
			return err
		}
		state.file.Close()
		*state = *next
		atomic.AddInt64(&t.reopens, 1)
		return nil
	}

	if pathInfo.Size() < state.offset {
		t.log.WithFields(log.Fields{
			"file":   t.path,
			"offset": state.offset,
			"size":   pathInfo.Size(),
		}).Warn("Connection log was truncated, reading from the start")
		if _, err := state.file.Seek(0, io.SeekStart); err != nil {
			return errors.Wrapf(err, "could not seek in %s", t.path)
		}
		state.reader.Reset(state.file)
		state.offset = 0
		state.partial = nil
		state.discarding = false
		atomic.AddInt64(&t.truncations, 1)
	}
	state.info = pathInfo
	return nil
}

// recover keeps trying to reopen the log, backing off between attempts,
// until it succeeds or ctx is cancelled. The current file stays open until
// then so a recreated log can't reuse its inode and pass for the same file.
func (t *Tailer) recover(ctx context.Context, state *tailState) (*tailState, error) {
	backoff := t.pollInterval

	for {
		if err := sleepContext(ctx, backoff); err != nil {
			return state, err
		}

		next, err := t.open(state.offset, state.info)
		if err == nil {
			state.file.Close()
			atomic.AddInt64(&t.reopens, 1)
			if next.offset == state.offset {
				next.partial = state.partial
				next.discarding = state.discarding
			}
			t.log.WithFields(log.Fields{
				"file":   t.path,
				"offset": next.offset,
			}).Info("Reopened connection log")
			return next, nil
		}

		t.log.WithFields(log.Fields{
			"file":    t.path,
			"error":   err.Error(),
			"backoff": backoff.String(),
		}).Error("Could not reopen connection log")
		backoff = util.MinDuration(backoff*2, t.maxBackoff)
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
