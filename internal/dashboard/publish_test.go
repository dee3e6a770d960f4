package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePublisherWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dashboard.json")
	p := NewFilePublisher(path)

	snap := Snapshot{CycleID: "c1", Mode: "dry_run", GeneratedAt: time.Now().UTC()}
	require.NoError(t, p.Publish(context.Background(), snap))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "c1", got.CycleID)
	assert.Equal(t, "dry_run", got.Mode)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFilePublisherOverwritesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	p := NewFilePublisher(path)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, Snapshot{CycleID: "c1"}))
	require.NoError(t, p.Publish(ctx, Snapshot{CycleID: "c2"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "c2", got.CycleID)
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(ctx context.Context, snap Snapshot) error {
	s.calls++
	return s.err
}

func TestMultiPublisherTriesAllReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &stubPublisher{err: boom}
	b := &stubPublisher{}

	err := MultiPublisher{a, b}.Publish(context.Background(), Snapshot{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://already.example.com", normaliseEndpoint("http://already.example.com", true))
}
