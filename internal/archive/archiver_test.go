package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"barrel-backend/internal/logger"
	"barrel-backend/internal/models"
	"barrel-backend/internal/timeutil"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	entries []*models.AuditLog
	calls   []models.AuditFilter
}

func (f *fakeSource) List(_ context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	f.calls = append(f.calls, filter)
	var out []*models.AuditLog
	for _, e := range f.entries {
		if filter.From != nil && e.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.Timestamp.Before(*filter.To) {
			continue
		}
		out = append(out, e)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeUploader struct {
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[*in.Bucket+"/"+*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	day := time.Date(2025, 3, 7, 10, 0, 0, 0, timeutil.Plant)
	assert.Equal(t, "audit/2025/03/07.jsonl", Key("audit", day))
	assert.Equal(t, "2025/03/07.jsonl", Key("", day))
}

func TestArchiveDayExportsOnlyThatDay(t *testing.T) {
	day := time.Date(2025, 3, 7, 0, 0, 0, 0, timeutil.Plant)
	src := &fakeSource{}
	for i := 0; i < pageSize+3; i++ {
		src.entries = append(src.entries, &models.AuditLog{
			Seq:       int64(i + 1),
			Action:    models.AuditCreate,
			Timestamp: day.Add(time.Duration(i) * time.Second),
		})
	}
	src.entries = append(src.entries, &models.AuditLog{Seq: int64(pageSize + 4), Timestamp: day.AddDate(0, 0, 1)})

	up := &fakeUploader{}
	a := New(src, up, "barrels", "audit", logger.Discard())

	res, err := a.ArchiveDay(context.Background(), day.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "audit/2025/03/07.jsonl", res.Key)
	assert.Equal(t, pageSize+3, res.Entries)
	assert.Len(t, src.calls, 2)
	for _, call := range src.calls {
		assert.True(t, call.Ascending)
	}

	body := up.objects["barrels/audit/2025/03/07.jsonl"]
	require.NotEmpty(t, body)
	assert.Equal(t, res.Bytes, len(body))

	scanner := bufio.NewScanner(bytes.NewReader(body))
	var seqs []int64
	for scanner.Scan() {
		var entry models.AuditLog
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		seqs = append(seqs, entry.Seq)
	}
	require.Len(t, seqs, pageSize+3)
	assert.Equal(t, int64(1), seqs[0])
	assert.Equal(t, int64(pageSize+3), seqs[len(seqs)-1])

	again, err := a.ArchiveDay(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, res.Key, again.Key)
	assert.Equal(t, body, up.objects["barrels/audit/2025/03/07.jsonl"])
}

func TestArchiveDayErrors(t *testing.T) {
	day := time.Date(2025, 3, 7, 0, 0, 0, 0, timeutil.Plant)

	_, err := New(&fakeSource{}, &fakeUploader{}, "", "audit", logger.Discard()).ArchiveDay(context.Background(), day)
	require.Error(t, err)

	boom := errors.New("bucket unavailable")
	_, err = New(&fakeSource{}, &fakeUploader{err: boom}, "barrels", "audit", logger.Discard()).ArchiveDay(context.Background(), day)
	require.ErrorIs(t, err, boom)
}
