package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaworks/intake/pkg/audit"
	"github.com/thermaworks/intake/pkg/contracts"
)

func testClient() contracts.ClientContext {
	return contracts.ClientContext{IP: "203.0.113.5", UserAgent: "curl/8.0"}
}

func TestNewEvent(t *testing.T) {
	e := audit.NewEvent(audit.KindCSRFTokenInvalid, testClient(), "malformed token")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, audit.KindCSRFTokenInvalid, e.Kind)
	assert.Equal(t, "203.0.113.5", e.ClientIP)
	assert.Equal(t, "curl/8.0", e.UserAgent)
	assert.False(t, e.Timestamp.IsZero())

	e2 := audit.NewEvent(audit.KindCSRFTokenInvalid, testClient(), "malformed token")
	assert.NotEqual(t, e.ID, e2.ID)
}

func TestWriterSink_Format(t *testing.T) {
	var buf bytes.Buffer
	sink := audit.NewWriterSink(&buf)

	event := audit.NewEvent(audit.KindRateLimitExceeded, testClient(), "11 in window")
	require.NoError(t, sink.Record(context.Background(), event))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))
	require.True(t, strings.HasSuffix(line, "\n"))

	var decoded audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, audit.KindRateLimitExceeded, decoded.Kind)
	assert.Equal(t, "11 in window", decoded.Details)
}

func TestBuffer_ConcurrentAppend(t *testing.T) {
	buffer := audit.NewBuffer()
	ctx := context.Background()

	const workers = 20
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				event := audit.NewEvent(audit.KindSubmissionOK, testClient(), fmt.Sprintf("w%d-%d", w, i))
				_ = buffer.Record(ctx, event)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, buffer.Size())
	assert.Len(t, buffer.Events(), workers*perWorker)
}

func TestBuffer_HandlersNotified(t *testing.T) {
	buffer := audit.NewBuffer()

	var seen []audit.Kind
	buffer.AddHandler(func(e audit.Event) {
		seen = append(seen, e.Kind)
	})

	require.NoError(t, buffer.Record(context.Background(), audit.NewEvent(audit.KindSignatureInvalid, testClient(), "")))
	require.Equal(t, []audit.Kind{audit.KindSignatureInvalid}, seen)
}

func TestBuffer_EventsReturnsSnapshot(t *testing.T) {
	buffer := audit.NewBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.Record(ctx, audit.NewEvent(audit.KindSubmissionOK, testClient(), "")))
	snapshot := buffer.Events()
	require.NoError(t, buffer.Record(ctx, audit.NewEvent(audit.KindSubmissionOK, testClient(), "")))

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, buffer.Size())
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, audit.Event) error { return f.err }

func TestFanout_AllSinksRunFirstErrorReturned(t *testing.T) {
	buffer := audit.NewBuffer()
	boom := errors.New("boom")
	later := errors.New("later")

	fanout := audit.Fanout{failingSink{boom}, buffer, failingSink{later}}
	err := fanout.Record(context.Background(), audit.NewEvent(audit.KindStorageError, testClient(), ""))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, buffer.Size())
}

func TestStoreSink_Delegates(t *testing.T) {
	buffer := audit.NewBuffer()
	sink := audit.NewStoreSink(eventWriterFunc(func(ctx context.Context, e audit.Event) error {
		return buffer.Record(ctx, e)
	}))

	require.NoError(t, sink.Record(context.Background(), audit.NewEvent(audit.KindNonceReplayed, testClient(), "")))
	assert.Equal(t, 1, buffer.Size())
}

type eventWriterFunc func(ctx context.Context, event audit.Event) error

func (f eventWriterFunc) InsertSecurityEvent(ctx context.Context, event audit.Event) error {
	return f(ctx, event)
}
