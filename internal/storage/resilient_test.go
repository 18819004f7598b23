package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyUploader struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("503 slow down")
	}
	return "https://cdn.test/" + key, nil
}

func fastConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:     3,
		Timeout:         time.Minute,
		RetryMaxElapsed: time.Second,
		InitialBackoff:  time.Millisecond,
	}
}

func TestResilientUploaderRetries(t *testing.T) {
	next := &flakyUploader{failures: 2}
	u := NewResilientUploader(next, fastConfig(), zap.NewNop().Sugar())

	url, err := u.Upload(context.Background(), "a/b.jpg", "image/jpeg", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a/b.jpg", url)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, gobreaker.StateClosed, u.State())
}

func TestResilientUploaderOpensBreaker(t *testing.T) {
	next := &flakyUploader{failures: 100}
	u := NewResilientUploader(next, fastConfig(), zap.NewNop().Sugar())

	_, err := u.Upload(context.Background(), "k", "image/jpeg", []byte{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, u.State())
	assert.Equal(t, 3, next.calls)

	// open breaker fails fast without touching the host
	_, err = u.Upload(context.Background(), "k", "image/jpeg", []byte{1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestPublicURL(t *testing.T) {
	s := &S3Store{bucket: "pix", region: "eu-west-1"}
	assert.Equal(t, "https://pix.s3.eu-west-1.amazonaws.com/u1/a%20b.jpg", s.PublicURL("u1/a b.jpg"))

	s.endpoint = "http://minio:9000"
	assert.Equal(t, "http://minio:9000/pix/u1/x.jpg", s.PublicURL("u1/x.jpg"))
}
