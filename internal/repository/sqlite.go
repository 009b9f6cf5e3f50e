package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
)

// SQLiteDB is the local store. Timestamps are kept as unix nanoseconds so range
// comparisons and ordering stay numeric.
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Each :memory: connection is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			issue_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description_user TEXT,
			description_final TEXT NOT NULL,
			lng REAL NOT NULL,
			lat REAL NOT NULL,
			approx_location INTEGER NOT NULL DEFAULT 0,
			photo_url TEXT,
			photo_stored INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
		CREATE INDEX IF NOT EXISTS idx_reports_issue_type ON reports(issue_type);
		CREATE INDEX IF NOT EXISTS idx_reports_lng_lat ON reports(lng, lat);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Add(ctx context.Context, r *models.Report) (string, error) {
	id := primitive.NewObjectID().Hex()

	var descUser sql.NullString
	if r.DescriptionUser != "" {
		descUser = sql.NullString{String: r.DescriptionUser, Valid: true}
	}
	var photoURL sql.NullString
	if r.Photo.URL != nil {
		photoURL = sql.NullString{String: *r.Photo.URL, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, issue_type, severity, description_user, description_final,
			lng, lat, approx_location, photo_url, photo_stored, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(r.IssueType), string(r.Severity), descUser, r.DescriptionFinal,
		r.Location.Lng(), r.Location.Lat(), r.ApproxLocation, photoURL, r.Photo.Stored,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("error inserting report: %w", err)
	}

	r.ID = id
	return id, nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, issue_type, severity, description_user, description_final,
			lng, lat, approx_location, photo_url, photo_stored, created_at, updated_at
		FROM reports WHERE id = ?`, id)

	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting report %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteDB) ListReports(ctx context.Context, opts Filter) ([]models.Report, error) {
	query := `
		SELECT id, issue_type, severity, description_user, description_final,
			lng, lat, approx_location, photo_url, photo_stored, created_at, updated_at
		FROM reports`

	var conds []string
	var args []any

	if opts.Bounds != nil {
		conds = append(conds, "lng >= ? AND lng <= ? AND lat >= ? AND lat <= ?")
		args = append(args, opts.Bounds.Min.Lon(), opts.Bounds.Max.Lon(), opts.Bounds.Min.Lat(), opts.Bounds.Max.Lat())
	}
	if opts.Type != nil {
		conds = append(conds, "issue_type = ?")
		args = append(args, string(*opts.Type))
	}
	if opts.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		if opts.OmitDescriptions {
			r.DescriptionUser = ""
			r.DescriptionFinal = ""
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *SQLiteDB) DeleteSeeded(ctx context.Context, marker string) (int64, error) {
	if marker == "" {
		return 0, errors.New("seed marker is empty")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE instr(description_user, ?) > 0`, marker)
	if err != nil {
		return 0, fmt.Errorf("error deleting seeded reports: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (*models.Report, error) {
	var (
		r                    models.Report
		issueType, severity  string
		descUser, photoURL   sql.NullString
		lng, lat             float64
		createdAt, updatedAt int64
	)
	err := sc.Scan(&r.ID, &issueType, &severity, &descUser, &r.DescriptionFinal,
		&lng, &lat, &r.ApproxLocation, &photoURL, &r.Photo.Stored, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.IssueType = models.IssueType(issueType)
	r.Severity = models.Severity(severity)
	r.DescriptionUser = descUser.String
	r.Location = geo.ToGeoPoint(lng, lat)
	if photoURL.Valid {
		u := photoURL.String
		r.Photo.URL = &u
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}
