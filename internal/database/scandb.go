package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/overlayscan/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "overlayscan.db"

// ScanDB stores scan reports in SQLite. Each row keeps the full report as
// JSON next to the columns that history listings need.
type ScanDB struct {
	db     *sql.DB
	dbPath string
}

// Options controls how Open treats the database file.
type Options struct {
	// CreateIfNotExists creates the directory and file when missing. When
	// false, Open fails on a missing database.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions creates the database on demand and enables WAL.
func DefaultOptions() Options {
	return Options{CreateIfNotExists: true, EnableWAL: true}
}

// prepare checks or creates the database location and returns the DSN.
// mode=rw refuses to create a missing file; mode=rwc creates it.
func prepare(dbDir, dbPath string, create bool) (string, error) {
	if create {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return dbPath + "?mode=rwc", nil
	}

	_, err := os.Stat(dbPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("database not found at %s (run a scan first)", dbPath)
	case err != nil:
		return "", fmt.Errorf("failed to check database path: %w", err)
	}
	return dbPath + "?mode=rw", nil
}

// Open opens the ScanDB stored in dbDir.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn, err := prepare(dbDir, dbPath, opts.CreateIfNotExists)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{db: db, dbPath: dbPath}
	if err := sdb.init(opts.EnableWAL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sdb, nil
}

func (sdb *ScanDB) init(wal bool) error {
	ctx := context.Background()
	if wal {
		if _, err := sdb.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := sdb.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// Path returns the database file path.
func (sdb *ScanDB) Path() string {
	return sdb.dbPath
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	image_path TEXT NOT NULL,
	fingerprint TEXT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	report_json TEXT NOT NULL,
	dominant_opacity INTEGER DEFAULT 0,
	detection_ratio REAL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reports_image ON scan_reports(image_path);
CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON scan_reports(fingerprint);
CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);
`

// SaveScanReport saves a complete scan report as JSON and returns its ID.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	if report.Summary == nil {
		report.Summary = model.NewSummary(&report.Table)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO scan_reports (image_path, fingerprint, report_json, dominant_opacity, detection_ratio)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := sdb.db.ExecContext(ctx, query,
		report.ImagePath,
		report.Fingerprint,
		string(reportJSON),
		report.Summary.Dominant,
		report.Summary.DetectionRatio,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	return result.LastInsertId()
}

// decodeReport parses a stored report.
func decodeReport(reportJSON string) (*model.ScanReport, error) {
	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// getOne runs a single-row report query. A missing row yields (nil, nil).
func (sdb *ScanDB) getOne(ctx context.Context, query string, args ...any) (*model.ScanReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetLatestScanReport retrieves the most recent scan report for an image.
func (sdb *ScanDB) GetLatestScanReport(ctx context.Context, imagePath string) (*model.ScanReport, error) {
	return sdb.getOne(ctx, `
	SELECT report_json FROM scan_reports
	WHERE image_path = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, imagePath)
}

// GetScanReportByID retrieves a scan report by its database ID.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	return sdb.getOne(ctx, `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`, id)
}

// ListScannedImages returns the paths of all scanned images.
func (sdb *ScanDB) ListScannedImages(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT image_path FROM scan_reports
	ORDER BY image_path
	`

	rows, err := sdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []string
	for rows.Next() {
		var image string
		if err := rows.Scan(&image); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		images = append(images, image)
	}

	return images, rows.Err()
}

// GetScanHistory retrieves all scan reports for an image, newest first.
// Malformed stored reports are skipped.
func (sdb *ScanDB) GetScanHistory(ctx context.Context, imagePath string) ([]*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE image_path = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata is a history row without the decoded report.
type ScanReportMetadata struct {
	ID int64

	// ImagePath is the scanned image.
	ImagePath string

	// Fingerprint is the image content digest at scan time.
	Fingerprint string

	// Timestamp is when the scan was stored.
	Timestamp time.Time

	// DominantOpacity is the most frequent non-zero opacity, 0 if none.
	DominantOpacity int

	// DetectionRatio is the share of pairs with a non-zero opacity.
	DetectionRatio float64
}

// metadataColumns is the column list scanned by scanMetadata.
const metadataColumns = `id, image_path, COALESCE(fingerprint, ''), timestamp, dominant_opacity, detection_ratio`

// scanMetadata reads metadata rows.
func scanMetadata(rows *sql.Rows) ([]ScanReportMetadata, error) {
	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string

		if err := rows.Scan(
			&meta.ID,
			&meta.ImagePath,
			&meta.Fingerprint,
			&timestamp,
			&meta.DominantOpacity,
			&meta.DetectionRatio,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetScanHistoryWithMetadata lists the history rows of an image, newest first.
func (sdb *ScanDB) GetScanHistoryWithMetadata(ctx context.Context, imagePath string) ([]ScanReportMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM scan_reports
	WHERE image_path = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	return scanMetadata(rows)
}

// FindByFingerprint returns metadata of every scan of images with the given
// content fingerprint, regardless of path, newest first.
func (sdb *ScanDB) FindByFingerprint(ctx context.Context, fingerprint string) ([]ScanReportMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM scan_reports
	WHERE fingerprint = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to find by fingerprint: %w", err)
	}
	defer rows.Close()

	return scanMetadata(rows)
}

// timestampLayouts are tried in order when reading the timestamp column.
var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time for unknown layouts.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
