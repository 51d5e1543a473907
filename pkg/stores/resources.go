package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

const resourceColumns = `id, uuid, objid, kind, name, description, container_id, ext_id, active,
	attribute, state, reason, parent_id, created_at, updated_at`

// CreateResource inserts a resource with its tags and assigns its ID
func (s *SQLiteStore) CreateResource(ctx context.Context, res *engine.Resource) error {
	if res.Kind == "" {
		return fmt.Errorf("resource kind is required")
	}
	if res.UUID == "" {
		res.UUID = uuid.New().String()
	}
	if res.State == "" {
		res.State = engine.ResourceStatePending
	}
	now := time.Now()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	attribute, err := encodeJSON(res.Attribute)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO resources (uuid, objid, kind, name, description, container_id, ext_id, active,
			attribute, state, reason, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			res.UUID,
			res.ObjID,
			res.Kind,
			res.Name,
			res.Desc,
			res.ContainerID,
			nullString(res.ExtID),
			res.Active,
			attribute,
			res.State,
			res.Reason,
			nullInt64(res.ParentID),
			res.CreatedAt,
			res.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create resource: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get resource ID: %w", err)
		}

		for _, tag := range res.Tags {
			if err := insertTag(ctx, tx, id, tag); err != nil {
				return err
			}
		}

		res.ID = id
		return nil
	})
}

// GetResource retrieves a resource by internal ID
func (s *SQLiteStore) GetResource(ctx context.Context, id int64) (*engine.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`

	res, err := scanResource(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("resource not found: %d", id), nil).
			WithResource(fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	if res.Tags, err = s.tags(ctx, id); err != nil {
		return nil, err
	}
	return res, nil
}

// GetResourceByExtID retrieves the resource carrying a remote identifier
func (s *SQLiteStore) GetResourceByExtID(ctx context.Context, extID string) (*engine.Resource, error) {
	if extID == "" {
		return nil, engine.NewNotFoundError("resource with empty ext_id", nil)
	}
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE ext_id = ? ORDER BY id LIMIT 1`

	res, err := scanResource(s.db.QueryRowContext(ctx, query, extID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("resource not found for ext_id: %s", extID), nil).
			WithResource(extID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	if res.Tags, err = s.tags(ctx, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateResource overwrites the mutable fields of a resource. Tags are
// managed through AddTag.
func (s *SQLiteStore) UpdateResource(ctx context.Context, res *engine.Resource) error {
	attribute, err := encodeJSON(res.Attribute)
	if err != nil {
		return err
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now()
	}

	query := `
		UPDATE resources
		SET name = ?, description = ?, container_id = ?, ext_id = ?, active = ?, attribute = ?,
			state = ?, reason = ?, parent_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		res.Name,
		res.Desc,
		res.ContainerID,
		nullString(res.ExtID),
		res.Active,
		attribute,
		res.State,
		res.Reason,
		nullInt64(res.ParentID),
		res.UpdatedAt,
		res.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewNotFoundError(fmt.Sprintf("resource not found: %d", res.ID), nil).
			WithResource(fmt.Sprint(res.ID))
	}
	return nil
}

// DeleteResource hard-deletes a resource; tags and links cascade
func (s *SQLiteStore) DeleteResource(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewNotFoundError(fmt.Sprintf("resource not found: %d", id), nil).
			WithResource(fmt.Sprint(id))
	}
	return nil
}

// ListResources lists resources matching the filter, oldest first
func (s *SQLiteStore) ListResources(ctx context.Context, filter engine.ResourceFilter) ([]*engine.Resource, error) {
	var conds []string
	var args []any
	if filter.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.ContainerID != "" {
		conds = append(conds, "container_id = ?")
		args = append(args, filter.ContainerID)
	}
	if filter.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, filter.State)
	}
	if filter.ParentID != 0 {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.Tag != "" {
		conds = append(conds, "id IN (SELECT resource_id FROM resource_tags WHERE tag = ?)")
		args = append(args, filter.Tag)
	}

	query := `SELECT ` + resourceColumns + ` FROM resources` + where(conds) + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	resources := []*engine.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	// Close before loading tags; an in-memory store has a single connection.
	rows.Close()

	for _, res := range resources {
		if res.Tags, err = s.tags(ctx, res.ID); err != nil {
			return nil, err
		}
	}
	return resources, nil
}

// AddTag attaches a tag to a resource; existing tags are ignored
func (s *SQLiteStore) AddTag(ctx context.Context, id int64, tag string) error {
	if tag == "" {
		return fmt.Errorf("tag is required")
	}
	err := insertTag(ctx, s.db, id, tag)
	if err != nil && isForeignKeyViolation(err) {
		return engine.NewNotFoundError(fmt.Sprintf("resource not found: %d", id), nil).
			WithResource(fmt.Sprint(id))
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTag(ctx context.Context, db execer, id int64, tag string) error {
	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO resource_tags (resource_id, tag) VALUES (?, ?)`, id, tag)
	if err != nil {
		return fmt.Errorf("failed to add tag %s: %w", tag, err)
	}
	return nil
}

func (s *SQLiteStore) tags(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM resource_tags WHERE resource_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AddLink records a link between two resources
func (s *SQLiteStore) AddLink(ctx context.Context, link *engine.ResourceLink) error {
	attrs, err := encodeJSON(link.Attributes)
	if err != nil {
		return err
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO resource_links (name, type, start_resource_id, end_resource_id, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		link.Name,
		link.Type,
		link.StartResourceID,
		link.EndResourceID,
		attrs,
		link.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return engine.NewNotFoundError(
				fmt.Sprintf("cannot link resource %d to %d: resource not found", link.StartResourceID, link.EndResourceID), nil)
		}
		return fmt.Errorf("failed to add link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get link ID: %w", err)
	}
	link.ID = id
	return nil
}

// ListLinks lists the links starting at a resource
func (s *SQLiteStore) ListLinks(ctx context.Context, resourceID int64) ([]*engine.ResourceLink, error) {
	query := `
		SELECT id, name, type, start_resource_id, end_resource_id, attributes, created_at
		FROM resource_links
		WHERE start_resource_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []*engine.ResourceLink{}
	for rows.Next() {
		link := &engine.ResourceLink{}
		var attrs sql.NullString
		err := rows.Scan(
			&link.ID,
			&link.Name,
			&link.Type,
			&link.StartResourceID,
			&link.EndResourceID,
			&attrs,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if link.Attributes, err = decodeJSON(attrs); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

func scanResource(row scanner) (*engine.Resource, error) {
	res := &engine.Resource{}
	var extID, attribute sql.NullString
	var parentID sql.NullInt64
	var state string
	err := row.Scan(
		&res.ID,
		&res.UUID,
		&res.ObjID,
		&res.Kind,
		&res.Name,
		&res.Desc,
		&res.ContainerID,
		&extID,
		&res.Active,
		&attribute,
		&state,
		&res.Reason,
		&parentID,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.ExtID = extID.String
	res.ParentID = parentID.Int64
	res.State = engine.ParseResourceState(state)
	if res.Attribute, err = decodeJSON(attribute); err != nil {
		return nil, err
	}
	return res, nil
}
