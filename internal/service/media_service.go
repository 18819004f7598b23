package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/fathima-sithara/pixshare-service/internal/apperr"
	"github.com/fathima-sithara/pixshare-service/internal/domain"
	"github.com/fathima-sithara/pixshare-service/internal/media"
	"github.com/fathima-sithara/pixshare-service/internal/metrics"
	"github.com/fathima-sithara/pixshare-service/internal/storage"
	"github.com/fathima-sithara/pixshare-service/internal/utils"
	"go.uber.org/zap"
)

type MediaConfig struct {
	KeyPrefix string
	Image     media.Options
	Archive   media.Limits
}

// MediaService re-encodes images and hands them to the media host.
type MediaService struct {
	store storage.Uploader
	cfg   MediaConfig
	log   *zap.SugaredLogger
}

func NewMediaService(store storage.Uploader, cfg MediaConfig, log *zap.SugaredLogger) *MediaService {
	return &MediaService{store: store, cfg: cfg, log: log}
}

type ArchiveResult struct {
	Uploaded []*domain.Media `json:"uploaded"`
	Skipped  []media.Skipped `json:"skipped"`
}

func (s *MediaService) key(userID, filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, base)
	if len(base) > 40 {
		base = base[:40]
	}
	return path.Join(s.cfg.KeyPrefix, userID, utils.NewID()+"_"+base+".jpg")
}

// UploadImage normalises one image and uploads it.
func (s *MediaService) UploadImage(ctx context.Context, userID, filename string, data []byte) (*domain.Media, error) {
	if len(data) == 0 {
		return nil, apperr.InvalidInput("file", "file is empty")
	}
	img, err := media.Normalize(data, s.cfg.Image)
	if err != nil {
		if errors.Is(err, media.ErrNotImage) {
			return nil, apperr.InvalidInput("file", "file is not a supported image")
		}
		return nil, apperr.Internal(err)
	}
	return s.put(ctx, s.key(userID, filename), img)
}

func (s *MediaService) put(ctx context.Context, key string, img *media.Image) (*domain.Media, error) {
	url, err := s.store.Upload(ctx, key, img.ContentType, img.Data)
	if err != nil {
		metrics.MediaUploads.WithLabelValues("error").Inc()
		return nil, apperr.Internal(err)
	}
	metrics.MediaUploads.WithLabelValues("ok").Inc()
	return &domain.Media{
		Key:         key,
		URL:         url,
		Width:       img.Width,
		Height:      img.Height,
		Size:        int64(len(img.Data)),
		ContentType: img.ContentType,
	}, nil
}

// UploadArchive unzips an archive, then re-encodes and uploads every image in
// it. Entries that cannot be processed are reported, not fatal; a media host
// failure stops the run.
func (s *MediaService) UploadArchive(ctx context.Context, userID string, data []byte) (*ArchiveResult, error) {
	entries, skipped, err := media.ExtractImages(data, s.cfg.Archive)
	if err != nil {
		return nil, apperr.InvalidInput("file", "file is not a valid zip archive")
	}
	res := &ArchiveResult{Uploaded: []*domain.Media{}, Skipped: skipped}
	if res.Skipped == nil {
		res.Skipped = []media.Skipped{}
	}
	for _, e := range entries {
		img, err := media.Normalize(e.Data, s.cfg.Image)
		if err != nil {
			res.Skipped = append(res.Skipped, media.Skipped{Name: e.Name, Reason: "not a decodable image"})
			continue
		}
		m, err := s.put(ctx, s.key(userID, e.Name), img)
		if err != nil {
			s.log.Errorw("archive upload aborted", "user_id", userID, "entry", e.Name, "uploaded", len(res.Uploaded), "error", err)
			return nil, err
		}
		res.Uploaded = append(res.Uploaded, m)
	}
	return res, nil
}
