package parser

import (
	"context"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	pt "github.com/activecm/connwatch/parser/parsetypes"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 10 * time.Millisecond

type recordingHandler struct {
	mu    sync.Mutex
	conns []*pt.Conn
	keep  bool
}

func (h *recordingHandler) Ingest(conn *pt.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns = append(h.conns, conn)
	return h.keep
}

func (h *recordingHandler) sources() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	srcs := make([]string, 0, len(h.conns))
	for _, conn := range h.conns {
		srcs = append(srcs, conn.Source)
	}
	return srcs
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func appendToFile(t *testing.T, filePath, contents string) {
	t.Helper()
	fileHandle, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fileHandle.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, fileHandle.Close())
}

// startTailer runs a Tailer over a fresh log holding contents and returns
// the handler it feeds. The Tailer is stopped when the test ends.
func startTailer(t *testing.T, contents string) (*Tailer, *recordingHandler, string) {
	t.Helper()
	filePath := path.Join(t.TempDir(), "conn.log")
	require.NoError(t, ioutil.WriteFile(filePath, []byte(contents), 0644))

	logger, _ := test.NewNullLogger()
	handler := &recordingHandler{keep: true}
	tailer := NewTailer(filePath, handler, testPollInterval, 4*testPollInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tailer.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.Equal(t, context.Canceled, err)
		case <-time.After(5 * time.Second):
			t.Error("tailer did not stop after cancellation")
		}
	})

	select {
	case <-tailer.CaughtUp():
	case err := <-done:
		t.Fatalf("tailer stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("tailer never caught up")
	}
	return tailer, handler, filePath
}

func TestTailerCatchUpThenFollow(t *testing.T) {
	tailer, handler, filePath := startTailer(t, "1000 a b\n2000 b c\n")
	assert.Equal(t, []string{"a", "b"}, handler.sources())

	appendToFile(t, filePath, "3000 c d\n4000 d e\n")
	waitFor(t, func() bool { return len(handler.sources()) == 4 }, "appended lines")
	assert.Equal(t, []string{"a", "b", "c", "d"}, handler.sources())

	stats := tailer.Stats()
	assert.Equal(t, int64(4), stats.Ingested)
	assert.Equal(t, int64(4), stats.Lines.Accepted)
	assert.Equal(t, int64(len("1000 a b\n")*4), stats.BytesRead)
}

func TestTailerWaitsForLineTerminator(t *testing.T) {
	_, handler, filePath := startTailer(t, "1000 a b\n2000 x")
	assert.Equal(t, []string{"a"}, handler.sources())

	// give the tailer several polls to misread the fragment
	time.Sleep(5 * testPollInterval)
	assert.Equal(t, []string{"a"}, handler.sources())

	appendToFile(t, filePath, "y z\n")
	waitFor(t, func() bool { return len(handler.sources()) == 2 }, "completed line")

	handler.mu.Lock()
	last := handler.conns[1]
	handler.mu.Unlock()
	assert.Equal(t, "xy", last.Source)
	assert.Equal(t, "z", last.Destination)
}

func TestTailerSkipsMalformedLines(t *testing.T) {
	tailer, handler, filePath := startTailer(t, "1000 a b\nnot-a-valid-line\n2000 b c\n")
	assert.Equal(t, []string{"a", "b"}, handler.sources())

	appendToFile(t, filePath, "\r\n3000 c d\r\n")
	waitFor(t, func() bool { return len(handler.sources()) == 3 }, "line after garbage")

	stats := tailer.Stats()
	assert.Equal(t, int64(2), stats.Lines.Rejected)
	assert.Equal(t, int64(3), stats.Lines.Accepted)
	assert.Equal(t, int64(5), stats.Lines.Lines)
}

func TestTailerRejectsOverlongLine(t *testing.T) {
	overlong := "1000 " + strings.Repeat("x", maxLineLength) + " b\n"
	tailer, handler, _ := startTailer(t, "1000 a b\n"+overlong+"2000 c d\n")
	assert.Equal(t, []string{"a", "c"}, handler.sources())

	stats := tailer.Stats()
	assert.Equal(t, int64(1), stats.Lines.Rejected)
	assert.Equal(t, int64(2), stats.Lines.Accepted)
	assert.Equal(t, int64(len("1000 a b\n")+len(overlong)+len("2000 c d\n")), stats.BytesRead)
}

func TestTailerDiscardsUnterminatedOverlongWrite(t *testing.T) {
	tailer, handler, filePath := startTailer(t, "1000 a b\n")

	appendToFile(t, filePath, strings.Repeat("x", maxLineLength+1))
	waitFor(t, func() bool { return tailer.Stats().Lines.Rejected == 1 }, "overlong line rejection")

	// the rest of the overlong line is skipped, not parsed as a new line
	appendToFile(t, filePath, strings.Repeat("y", 100)+" q r\n2000 c d\n")
	waitFor(t, func() bool { return len(handler.sources()) == 2 }, "line after the overlong one")
	assert.Equal(t, []string{"a", "c"}, handler.sources())

	stats := tailer.Stats()
	assert.Equal(t, int64(1), stats.Lines.Rejected)
	assert.Equal(t, int64(3), stats.Lines.Lines)
}

func TestTailerCountsDroppedRecords(t *testing.T) {
	filePath := path.Join(t.TempDir(), "conn.log")
	require.NoError(t, ioutil.WriteFile(filePath, []byte("1000 a b\n"), 0644))

	logger, _ := test.NewNullLogger()
	handler := &recordingHandler{keep: false}
	tailer := NewTailer(filePath, handler, testPollInterval, testPollInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()

	<-tailer.CaughtUp()
	cancel()
	assert.Equal(t, context.Canceled, <-done)

	stats := tailer.Stats()
	assert.Equal(t, int64(0), stats.Ingested)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestTailerRereadsTruncatedLog(t *testing.T) {
	tailer, handler, filePath := startTailer(t, "1000 first-host second-host\n2000 third-host fourth-host\n")
	assert.Len(t, handler.sources(), 2)

	require.NoError(t, ioutil.WriteFile(filePath, []byte("3000 a b\n"), 0644))
	waitFor(t, func() bool { return len(handler.sources()) == 3 }, "line after truncation")
	assert.Equal(t, "a", handler.sources()[2])
	assert.Equal(t, int64(1), tailer.Stats().Truncations)
}

func TestTailerFollowsReplacedLog(t *testing.T) {
	tailer, handler, filePath := startTailer(t, "1000 a b\n")

	rotated := filePath + ".1"
	require.NoError(t, os.Rename(filePath, rotated))
	require.NoError(t, ioutil.WriteFile(filePath, []byte("2000 b c\n3000 c d\n"), 0644))

	waitFor(t, func() bool { return len(handler.sources()) == 3 }, "lines from the new file")
	assert.Equal(t, []string{"a", "b", "c"}, handler.sources())
	assert.True(t, tailer.Stats().Reopens >= 1)
}

func TestTailerRecoversFromDeletedLog(t *testing.T) {
	_, handler, filePath := startTailer(t, "1000 a b\n")

	require.NoError(t, os.Remove(filePath))
	time.Sleep(3 * testPollInterval)
	require.NoError(t, ioutil.WriteFile(filePath, []byte("2000 b c\n"), 0644))

	waitFor(t, func() bool { return len(handler.sources()) == 2 }, "line from the recreated file")
	assert.Equal(t, []string{"a", "b"}, handler.sources())
}

func TestTailerMissingLog(t *testing.T) {
	logger, _ := test.NewNullLogger()
	missing := path.Join(t.TempDir(), "missing.log")
	tailer := NewTailer(missing, &recordingHandler{}, testPollInterval, testPollInterval, logger)

	err := tailer.Run(context.Background())
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestTailerStopsOnCancel(t *testing.T) {
	filePath := path.Join(t.TempDir(), "conn.log")
	require.NoError(t, ioutil.WriteFile(filePath, nil, 0644))

	logger, _ := test.NewNullLogger()
	tailer := NewTailer(filePath, &recordingHandler{}, time.Hour, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tailer.Run(ctx) }()

	<-tailer.CaughtUp()
	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("idle wait was not interrupted")
	}
}
