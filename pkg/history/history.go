// Package history keeps a ledger of submitted analyses. The default
// location is an in-memory database, so nothing survives the process
// unless an on-disk location is configured.
package history

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"

	"github.com/legacy-guard/guard-client/pkg/datamodel"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{}))

type Entry struct {
	ProjectID            string           `field:"project_id"`
	ProjectName          string           `field:"project_name"`
	Language             string           `field:"language"`
	Archive              string           `field:"archive"`
	SubmittedAt          time.Time        `field:"submitted_at"`
	UpdatedAt            time.Time        `field:"updated_at"`
	Status               datamodel.Status `field:"status"`
	VulnerabilitiesFound int              `field:"vulnerabilities_found"`
}

type Recorder interface {
	// Set adds or updates a ledger entry
	Set(entry *Entry) error

	// Get fetches a ledger entry
	Get(projectID string) (entry *Entry, err error)

	// List returns all entries, most recently submitted first
	List() (entries []*Entry, err error)

	Close() error
}

var ErrEntryNotFound = errors.New("entry not found")

type History struct {
	db *sql.DB
	sync.Mutex
}

var CreateTable = `CREATE TABLE IF NOT EXISTS submissions (
	project_id TEXT PRIMARY KEY,
	project_name TEXT,
	language TEXT,
	archive TEXT,
	submitted_at int NOT NULL,
	updated_at int NOT NULL,
	status TEXT,
	vulnerabilities_found int );`

func NewHistory(location string) (h *History, err error) {
	if location == "" {
		location = "file::memory:"
	} else {
		_, err = os.Stat(location)
		if errors.Is(err, os.ErrNotExist) {
			dir, _ := filepath.Split(location)
			err = os.MkdirAll(dir, 0o755)
			if err != nil {
				return
			}
			_, err = os.Create(location)
			if err != nil {
				return
			}
		}
	}
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return
	}

	result, err := db.Exec(CreateTable)
	Logger.Debug("open history ledger", "result", result)

	h = &History{db: db}
	return
}

func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) Get(projectID string) (entry *Entry, err error) {
	h.Lock()
	defer h.Unlock()
	entry, err = h.scanOne(h.db.QueryRow("SELECT * FROM submissions WHERE project_id = ?", projectID))
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (h *History) scanOne(row rowScanner) (entry *Entry, err error) {
	entry = &Entry{}
	var submittedAt, updatedAt int64
	err = row.Scan(
		&entry.ProjectID,
		&entry.ProjectName,
		&entry.Language,
		&entry.Archive,
		&submittedAt,
		&updatedAt,
		&entry.Status,
		&entry.VulnerabilitiesFound,
	)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, ErrEntryNotFound
		}
		return
	}
	entry.SubmittedAt = time.UnixMilli(submittedAt)
	entry.UpdatedAt = time.UnixMilli(updatedAt)
	return
}

func (h *History) List() (entries []*Entry, err error) {
	h.Lock()
	defer h.Unlock()
	rows, err := h.db.Query("SELECT * FROM submissions ORDER BY submitted_at DESC")
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var entry *Entry
		entry, err = h.scanOne(rows)
		if err != nil {
			return
		}
		entries = append(entries, entry)
	}
	err = rows.Err()
	return
}

var Now = time.Now

func (h *History) Set(entry *Entry) (err error) {
	h.Lock()
	defer h.Unlock()
	tx, err := h.db.Begin()
	if err != nil {
		return
	}
	defer tx.Commit()
	sqlStatement := `
INSERT INTO submissions (project_id, project_name, language, archive, submitted_at, updated_at, status, vulnerabilities_found)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if entry.SubmittedAt.UnixMilli() <= 0 {
		entry.SubmittedAt = Now()
	}
	if entry.UpdatedAt.UnixMilli() <= 0 {
		entry.UpdatedAt = Now()
	}
	_, err = tx.Exec(sqlStatement,
		entry.ProjectID,
		entry.ProjectName,
		entry.Language,
		entry.Archive,
		entry.SubmittedAt.UnixMilli(),
		entry.UpdatedAt.UnixMilli(),
		entry.Status,
		entry.VulnerabilitiesFound,
	)
	if err == nil {
		return
	}
	// primary key conflict means the submission is already recorded
	if e, ok := err.(*sqlite.Error); ok && e.Code() == 1555 {
		sqlStatement := `
		UPDATE submissions SET project_name=$2, language=$3, archive=$4, submitted_at=$5, updated_at=$6, status=$7, vulnerabilities_found=$8
		WHERE project_id = $1`
		_, err = tx.Exec(sqlStatement,
			entry.ProjectID,
			entry.ProjectName,
			entry.Language,
			entry.Archive,
			entry.SubmittedAt.UnixMilli(),
			entry.UpdatedAt.UnixMilli(),
			entry.Status,
			entry.VulnerabilitiesFound,
		)
		return err
	}
	return
}
