package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/diging/vogon-web-sub000/pkg/model"
)

func insertTextPosition(ctx context.Context, q queryer, p *model.TextPosition) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO text_positions (text_id, position_type, start_offset, end_offset, position_value)
		 VALUES (?, ?, ?, ?, ?)`,
		p.TextID, p.PositionType, nullInt(p.StartOffset), nullInt(p.EndOffset), p.PositionValue,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func insertAppellation(ctx context.Context, q queryer, a *model.Appellation) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO appellations
			(interpretation_id, as_predicate, token_ids, string_rep, position_id, created_by, text_id, project_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(a.InterpretationID), a.AsPredicate, a.TokenIDs, a.StringRep, nullInt64(a.PositionID),
		a.CreatedBy, a.TextID, a.ProjectID, a.CreatedAt,
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

// getAppellation loads an appellation together with its interpretation.
func getAppellation(ctx context.Context, q queryer, id int64) (*model.Appellation, error) {
	var (
		a                model.Appellation
		interp, position sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, interpretation_id, as_predicate, token_ids, string_rep, position_id, created_by, text_id, project_id, created_at
		 FROM appellations WHERE id = ?`, id,
	).Scan(&a.ID, &interp, &a.AsPredicate, &a.TokenIDs, &a.StringRep, &position,
		&a.CreatedBy, &a.TextID, &a.ProjectID, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "appellation", id)
	}
	a.InterpretationID = int64Ptr(interp)
	a.PositionID = int64Ptr(position)

	if a.InterpretationID != nil {
		c, err := getConcept(ctx, q, *a.InterpretationID)
		if err != nil {
			return nil, fmt.Errorf("interpretation of appellation %d: %w", id, err)
		}
		a.Interpretation = c
	}
	return &a, nil
}

func insertDateAppellation(ctx context.Context, q queryer, d *model.DateAppellation) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO date_appellations
			(year, month, day, string_rep, position_id, created_by, text_id, project_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Year, d.Month, d.Day, d.StringRep, nullInt64(d.PositionID),
		d.CreatedBy, d.TextID, d.ProjectID, d.CreatedAt,
	)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

func getDateAppellation(ctx context.Context, q queryer, id int64) (*model.DateAppellation, error) {
	var (
		d        model.DateAppellation
		position sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, year, month, day, string_rep, position_id, created_by, text_id, project_id, created_at
		 FROM date_appellations WHERE id = ?`, id,
	).Scan(&d.ID, &d.Year, &d.Month, &d.Day, &d.StringRep, &position,
		&d.CreatedBy, &d.TextID, &d.ProjectID, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err, "date appellation", id)
	}
	d.PositionID = int64Ptr(position)
	return &d, nil
}

// CreateAppellation records evidence for a TYPE slot ahead of instantiation.
// The position, when given, is written in the same transaction.
func (db *DB) CreateAppellation(ctx context.Context, a *model.Appellation, pos *model.TextPosition) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if pos != nil {
		pos.TextID = a.TextID
		if err := insertTextPosition(ctx, tx, pos); err != nil {
			return fmt.Errorf("insert text position: %w", err)
		}
		a.PositionID = &pos.ID
	}
	if a.InterpretationID != nil {
		c, err := getConcept(ctx, tx, *a.InterpretationID)
		if err != nil {
			return err
		}
		a.Interpretation = c
	}
	if err := insertAppellation(ctx, tx, a); err != nil {
		return fmt.Errorf("insert appellation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Debug("appellation created", slog.Int64("id", a.ID), slog.Int64("text_id", a.TextID))
	return nil
}

func (db *DB) GetAppellation(ctx context.Context, id int64) (*model.Appellation, error) {
	return getAppellation(ctx, db.conn, id)
}

// CreateDateAppellation records evidence for a DATE slot ahead of
// instantiation.
func (db *DB) CreateDateAppellation(ctx context.Context, d *model.DateAppellation, pos *model.TextPosition) error {
	if d.Year <= 0 {
		return fmt.Errorf("date appellation requires a year")
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if pos != nil {
		pos.TextID = d.TextID
		if err := insertTextPosition(ctx, tx, pos); err != nil {
			return fmt.Errorf("insert text position: %w", err)
		}
		d.PositionID = &pos.ID
	}
	if err := insertDateAppellation(ctx, tx, d); err != nil {
		return fmt.Errorf("insert date appellation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Debug("date appellation created", slog.Int64("id", d.ID), slog.String("date", d.DateRepresentation()))
	return nil
}

func (db *DB) GetDateAppellation(ctx context.Context, id int64) (*model.DateAppellation, error) {
	return getDateAppellation(ctx, db.conn, id)
}
