package files

import (
	"context"
	"errors"
	"fmt"

	"dedupstore/internal/models"
	"dedupstore/internal/storage"
)

var ErrListingUnsupported = errors.New("metadata index cannot list files")

func (s *FileService) list(ctx context.Context) ([]models.FileRecord, error) {
	lister, ok := s.index.(storage.Lister)
	if !ok {
		return nil, models.Server(ErrListingUnsupported)
	}
	records, err := lister.ListFiles(ctx)
	if err != nil {
		return nil, models.Server(fmt.Errorf("list files: %w", err))
	}
	return records, nil
}

// List returns every record in the index.
func (s *FileService) List(ctx context.Context) ([]models.FileRecord, error) {
	return s.list(ctx)
}

// Audit walks the index and reports records without a readable blob.
// It only reports; reconciling is left to the operator.
func (s *FileService) Audit(ctx context.Context) (models.AuditReport, error) {
	records, err := s.list(ctx)
	if err != nil {
		return models.AuditReport{}, err
	}

	report := models.AuditReport{
		Checked:     len(records),
		Incomplete:  []models.FileRecord{},
		MissingBlob: []models.FileRecord{},
	}
	for _, r := range records {
		if !r.Finalized() {
			report.Incomplete = append(report.Incomplete, r)
			continue
		}
		ok, err := s.blobs.Exists(ctx, r.Location)
		if err != nil {
			return models.AuditReport{}, models.Server(fmt.Errorf("check blob %s: %w", r.Location, err))
		}
		if !ok {
			report.MissingBlob = append(report.MissingBlob, r)
		}
	}

	if !report.Healthy() {
		s.log.Warn("audit found inconsistent records",
			"checked", report.Checked,
			"incomplete", len(report.Incomplete),
			"missing_blob", len(report.MissingBlob))
	}
	return report, nil
}

// Stats summarizes the index.
func (s *FileService) Stats(ctx context.Context) (models.Stats, error) {
	records, err := s.list(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	var stats models.Stats
	for _, r := range records {
		stats.Records++
		if r.Finalized() {
			stats.Finalized++
			stats.Bytes += r.Size
		}
	}
	return stats, nil
}
