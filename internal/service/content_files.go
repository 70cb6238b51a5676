package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/metrics"
	"github.com/sakif/travel-blog/internal/model"
)

// UploadFile stores data owned by ownerID in the bucket with public-read
// permission. The content type is sniffed from the bytes; the client's claim
// is not trusted.
func (s *ContentService) UploadFile(ctx context.Context, ownerID, name string, data []byte) (*model.File, error) {
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "upload"
	}

	f := &model.File{
		Name:     name,
		MimeType: mimetype.Detect(data).String(),
		OwnerID:  ownerID,
		Public:   true,
		Data:     data,
	}
	if err := s.files.Create(ctx, f); err != nil {
		s.logger.Error("failed to upload file",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("uploading %s: %w", name, err)
	}

	metrics.UploadedBytes.Add(float64(f.Size))

	s.logger.Info("file uploaded",
		slog.String("fileID", f.ID),
		slog.String("mimeType", f.MimeType),
		slog.Int64("size", f.Size),
	)
	return f, nil
}

// UploadImage is UploadFile restricted to images. The editor hands the
// returned file's view URL back to the page.
func (s *ContentService) UploadImage(ctx context.Context, ownerID, name string, data []byte) (*model.File, error) {
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("expected an image, got %s", mt.String()))
	}
	return s.UploadFile(ctx, ownerID, name, data)
}

// storeOverflow writes the full HTML of a long post as <slug>.html, owned by
// the post's author.
func (s *ContentService) storeOverflow(ctx context.Context, ownerID, slug, content string) (*model.File, error) {
	f := &model.File{
		Name:     slug + ".html",
		MimeType: "text/html; charset=utf-8",
		OwnerID:  ownerID,
		Public:   true,
		Data:     []byte(content),
	}
	if err := s.files.Create(ctx, f); err != nil {
		s.logger.Error("failed to store overflow content",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing content of %s: %w", slug, err)
	}
	return f, nil
}

// DeleteFile removes a file uploaded by userID. Anyone else gets
// apperror.ErrForbidden, so a post's overflow file and featured image can
// only be removed by its author.
func (s *ContentService) DeleteFile(ctx context.Context, id, userID string) error {
	f, err := s.files.Get(ctx, id)
	if err != nil {
		return err
	}
	if f.OwnerID == "" || f.OwnerID != userID {
		return apperror.Forbidden("only the uploader may delete this file")
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	s.logger.Info("file deleted", slog.String("fileID", id), slog.String("userID", userID))
	return nil
}

// releaseImage deletes a featured image that is no longer used, but only when
// ownerID uploaded it. A post may point at someone else's upload; that file
// is left alone.
func (s *ContentService) releaseImage(ctx context.Context, id, ownerID string) {
	f, err := s.files.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("could not look up featured image",
				slog.String("fileID", id),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if f.OwnerID != ownerID {
		return
	}
	s.deleteQuietly(ctx, id, "featured image")
}

// deleteQuietly removes a file and only logs on failure. what describes the
// file in the log line.
func (s *ContentService) deleteQuietly(ctx context.Context, id, what string) {
	if err := s.files.Delete(ctx, id); err != nil {
		s.logger.Warn("could not delete file",
			slog.String("fileID", id),
			slog.String("file", what),
			slog.String("error", err.Error()),
		)
	}
}

// ViewFile returns a file through the public path. Files without public-read
// permission are reported as apperror.ErrForbidden.
func (s *ContentService) ViewFile(ctx context.Context, id string) (*model.File, error) {
	f, err := s.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.Public {
		return nil, apperror.Forbidden("file is not publicly readable")
	}
	return f, nil
}

// DownloadFile returns a file regardless of its permission. Callers are
// expected to have authenticated.
func (s *ContentService) DownloadFile(ctx context.Context, id string) (*model.File, error) {
	return s.files.Get(ctx, id)
}

// PermissionReport tallies a FixFilePermissions run.
type PermissionReport struct {
	Total    int               `json:"total"`
	Updated  int               `json:"updated"`
	Failed   int               `json:"failed"`
	Failures map[string]string `json:"failures,omitempty"` // file id -> error
}

// FixFilePermissions grants public-read on every file in the bucket. One
// file failing does not stop the run; failures are collected in the report.
// Only a failure to list the bucket is returned as an error.
func (s *ContentService) FixFilePermissions(ctx context.Context) (*PermissionReport, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	report := &PermissionReport{Total: len(files)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.files.SetPublic(ctx, f.ID, true); err != nil {
			report.Failed++
			if report.Failures == nil {
				report.Failures = make(map[string]string)
			}
			report.Failures[f.ID] = err.Error()
			s.logger.Warn("failed to fix file permission",
				slog.String("fileID", f.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Updated++
	}

	s.logger.Info("file permissions fixed",
		slog.Int("total", report.Total),
		slog.Int("updated", report.Updated),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// FixFilePermission grants public-read on a single file.
func (s *ContentService) FixFilePermission(ctx context.Context, id string) error {
	if err := s.files.SetPublic(ctx, id, true); err != nil {
		return fmt.Errorf("fixing permission of %s: %w", id, err)
	}
	return nil
}

// ListFiles returns the metadata of every file in the bucket.
func (s *ContentService) ListFiles(ctx context.Context) ([]model.File, error) {
	return s.files.List(ctx)
}
