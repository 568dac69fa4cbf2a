package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yieldbet/marketd/internal/domain"
)

type fakeEventLog struct {
	entries   []domain.EventLogEntry
	deleted   int64
	exportErr error
}

func (f *fakeEventLog) Append(context.Context, domain.EventLogEntry) error { return nil }
func (f *fakeEventLog) Stats(context.Context) ([]domain.EventStats, error) {
	return nil, nil
}

func (f *fakeEventLog) ExportBefore(_ context.Context, cutoff time.Time, fn func(domain.EventLogEntry) error) (int64, error) {
	if f.exportErr != nil {
		return 0, f.exportErr
	}
	var n int64
	for _, e := range f.entries {
		if !e.CreatedAt.Before(cutoff) {
			continue
		}
		if err := fn(e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *fakeEventLog) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	for _, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			f.deleted++
		}
	}
	return f.deleted, nil
}

type fakeBlob struct {
	key     string
	content string
	putErr  error
}

func (f *fakeBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.key = path
	f.content = string(b)
	return nil
}

func (f *fakeBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return f.Put(ctx, path, data, "")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveEventLogExportsThenPrunes(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-100 * 24 * time.Hour)
	events := &fakeEventLog{entries: []domain.EventLogEntry{
		{ID: 1, EventType: "bet_event", EventData: []byte(`{"bet_id":1}`), Status: domain.EventLogSuccess, CreatedAt: old},
		{ID: 2, EventType: "market_event", EventData: []byte(`{"market_id":2}`), Status: domain.EventLogError, CreatedAt: old},
		{ID: 3, EventType: "bet_event", EventData: []byte(`{"bet_id":3}`), Status: domain.EventLogSuccess, CreatedAt: now},
	}}
	blob := &fakeBlob{}
	a := NewArchiver(events, blob, 90, testLogger())

	n, err := a.ArchiveEventLog(context.Background(), now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(2), events.deleted)

	assert.True(t, strings.HasPrefix(blob.key, "event-log/"))
	assert.True(t, strings.HasSuffix(blob.key, ".jsonl"))
	lines := strings.Split(strings.TrimSpace(blob.content), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"bet_event"`)
	assert.Contains(t, lines[1], `"market_event"`)
}

func TestArchiveEventLogNothingToDo(t *testing.T) {
	events := &fakeEventLog{}
	blob := &fakeBlob{}
	a := NewArchiver(events, blob, 90, testLogger())

	n, err := a.ArchiveEventLog(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blob.key)
	assert.Zero(t, events.deleted)
}

func TestArchiveEventLogUploadFailureKeepsRows(t *testing.T) {
	old := time.Now().UTC().Add(-200 * 24 * time.Hour)
	events := &fakeEventLog{entries: []domain.EventLogEntry{
		{ID: 1, EventType: "bet_event", EventData: []byte(`{}`), Status: domain.EventLogSuccess, CreatedAt: old},
	}}
	blob := &fakeBlob{putErr: errors.New("s3 down")}
	a := NewArchiver(events, blob, 90, testLogger())

	_, err := a.ArchiveEventLog(context.Background(), time.Now())
	require.Error(t, err)
	assert.Zero(t, events.deleted)
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC)

	next, err := NextCronTime("0 3 1 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC), next)

	next, err = NextCronTime("*/x * * * *", after)
	assert.Error(t, err)
	assert.True(t, next.IsZero())

	next, err = NextCronTime("0 * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC), next)
}
