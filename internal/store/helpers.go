package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanReceipts reads every receipt row; the column order is
// recipient, status, time, message_id, kind, detail.
func scanReceipts(rows *sql.Rows) ([]models.Receipt, error) {
	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		var messageID, kind, detail sql.NullString
		if err := rows.Scan(&r.To, &r.Status, &r.Time, &messageID, &kind, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		r.MessageID = messageID.String
		r.Kind = kind.String
		r.Detail = detail.String
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}
