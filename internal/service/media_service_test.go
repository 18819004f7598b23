package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUploader struct {
	mu     sync.Mutex
	keys   []string
	failAt int
}

func (u *memUploader) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failAt > 0 && len(u.keys)+1 == u.failAt {
		return "", errors.New("bucket unavailable")
	}
	u.keys = append(u.keys, key)
	return "https://cdn.test/" + key, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func testZip(t *testing.T, names []string, files [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[i])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newMediaService(up *memUploader) *MediaService {
	return NewMediaService(up, MediaConfig{
		KeyPrefix: "uploads",
		Image:     media.Options{MaxWidth: 64, Quality: 80},
		Archive:   media.Limits{MaxEntries: 10, MaxEntryBytes: 1 << 20, MaxTotalBytes: 4 << 20},
	}, zap.NewNop().Sugar())
}

func TestUploadImage(t *testing.T) {
	up := &memUploader{}
	svc := newMediaService(up)

	m, err := svc.UploadImage(context.Background(), "ana", "My Photo!.png", testPNG(t, 128, 32))
	require.NoError(t, err)
	assert.Equal(t, 64, m.Width)
	assert.Equal(t, 16, m.Height)
	assert.Equal(t, "image/jpeg", m.ContentType)
	assert.True(t, strings.HasPrefix(m.Key, "uploads/ana/"))
	assert.True(t, strings.HasSuffix(m.Key, "_My-Photo-.jpg"), m.Key)
	assert.Equal(t, "https://cdn.test/"+m.Key, m.URL)

	_, err = svc.UploadImage(context.Background(), "ana", "notes.txt", []byte("hello"))
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindInvalidInput, ae.Kind)
	assert.Equal(t, "file", ae.Field)

	_, err = svc.UploadImage(context.Background(), "ana", "empty.png", nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestUploadArchive(t *testing.T) {
	up := &memUploader{}
	svc := newMediaService(up)

	data := testZip(t,
		[]string{"a.png", "readme.txt", "b.png", "broken.jpg"},
		[][]byte{testPNG(t, 10, 10), []byte("hi"), testPNG(t, 20, 20), []byte("nope")},
	)
	res, err := svc.UploadArchive(context.Background(), "ana", data)
	require.NoError(t, err)
	assert.Len(t, res.Uploaded, 2)
	assert.Len(t, up.keys, 2)

	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[s.Name] = s.Reason
	}
	assert.Equal(t, "not an image", reasons["readme.txt"])
	assert.Equal(t, "not a decodable image", reasons["broken.jpg"])
}

func TestUploadArchiveRejectsNonZip(t *testing.T) {
	svc := newMediaService(&memUploader{})
	_, err := svc.UploadArchive(context.Background(), "ana", []byte("PK? no"))
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestUploadArchiveStopsOnHostFailure(t *testing.T) {
	up := &memUploader{failAt: 2}
	svc := newMediaService(up)

	data := testZip(t,
		[]string{"a.png", "b.png", "c.png"},
		[][]byte{testPNG(t, 8, 8), testPNG(t, 8, 8), testPNG(t, 8, 8)},
	)
	_, err := svc.UploadArchive(context.Background(), "ana", data)
	assert.True(t, apperr.Is(err, apperr.KindServer))
	assert.Len(t, up.keys, 1)
}
