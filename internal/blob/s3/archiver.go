package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
)

// OrderPruner extends the archive read path with deletion of records that
// have been safely uploaded to cold storage.
type OrderPruner interface {
	domain.OrderArchive
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver by querying the order archive for
// aged records, serializing them to JSONL, uploading the result to S3, and
// pruning the uploaded rows from the database.
type ArchiveImpl struct {
	writer domain.BlobWriter
	orders OrderPruner
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, orders OrderPruner, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		orders: orders,
		audit:  audit,
	}
}

// ArchiveOrders queries all archived orders updated before the cutoff,
// serializes them to JSONL, and uploads the file to S3 under a key unique to
// this run's cutoff. Rows are pruned from the database only after a
// successful upload; because pruned rows exist nowhere else, no two runs may
// ever share a key. The archival event is recorded in the audit log and the
// count of archived records is returned.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	count := int64(len(orders))

	if _, err := a.orders.DeleteBefore(ctx, before); err != nil {
		return count, fmt.Errorf("s3blob: archive orders prune: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.orders", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive orders audit log: %w", err)
		}
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff and keyed by its full timestamp so each run
// writes a distinct object.
//
//	archive/orders/2026-01/2026-01-15T000000.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, before.Format("2006-01"), before.Format("2006-01-02T150405"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
