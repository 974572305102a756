// ABOUTME: Document manifest operations
// ABOUTME: Tracks which contact owns which derived document key so renames and collisions are visible
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Document is the last key written for a contact.
type Document struct {
	ContactID string
	Key       string
	Name      string
	UpdatedAt time.Time
}

// RecordDocument upserts the document row for a contact.
func RecordDocument(ctx context.Context, db *sql.DB, doc Document) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO documents (contact_id, doc_key, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			doc_key = excluded.doc_key,
			name = excluded.name,
			updated_at = excluded.updated_at
	`, doc.ContactID, doc.Key, doc.Name, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// GetDocument returns the document row for a contact, or nil.
func GetDocument(ctx context.Context, db *sql.DB, contactID string) (*Document, error) {
	var doc Document
	err := db.QueryRowContext(ctx, `
		SELECT contact_id, doc_key, name, updated_at FROM documents WHERE contact_id = ?
	`, contactID).Scan(&doc.ContactID, &doc.Key, &doc.Name, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// DocumentOwners returns the contact ids currently recorded against key.
func DocumentOwners(ctx context.Context, db *sql.DB, key string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT contact_id FROM documents WHERE doc_key = ? ORDER BY updated_at
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query document owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument forgets a contact's document row.
func DeleteDocument(ctx context.Context, db *sql.DB, contactID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// PruneDocuments drops rows for contacts not in keep and returns how many went.
func PruneDocuments(ctx context.Context, db *sql.DB, keep map[string]bool) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT contact_id FROM documents`)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if err := DeleteDocument(ctx, db, id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Manifest adapts the document functions to the artifact syncer.
type Manifest struct {
	DB *sql.DB
}

// Owners lists the contact ids recorded against key.
func (m Manifest) Owners(ctx context.Context, key string) ([]string, error) {
	return DocumentOwners(ctx, m.DB, key)
}

// KeyFor returns the key last written for a contact, or "".
func (m Manifest) KeyFor(ctx context.Context, contactID string) (string, error) {
	doc, err := GetDocument(ctx, m.DB, contactID)
	if err != nil || doc == nil {
		return "", err
	}
	return doc.Key, nil
}

// Record stores the key just written for a contact.
func (m Manifest) Record(ctx context.Context, contactID, key, name string) error {
	return RecordDocument(ctx, m.DB, Document{ContactID: contactID, Key: key, Name: name})
}

// Forget drops a contact's row.
func (m Manifest) Forget(ctx context.Context, contactID string) error {
	return DeleteDocument(ctx, m.DB, contactID)
}

// Prune drops rows for contacts no longer in the store.
func (m Manifest) Prune(ctx context.Context, keep map[string]bool) (int, error) {
	return PruneDocuments(ctx, m.DB, keep)
}
