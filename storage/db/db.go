// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db mirrors the History Store into a SQL database, so that
// dashboards can be built from a shared server instead of a CSV file
// checked into each repository.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"

	"github.com/tracyrender/benchdash/history"
)

// DB is a high-level interface to a History Store mirror. It's safe
// for concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertUpload *sql.Stmt
	insertRecord *sql.Stmt
}

// ParseSource splits a data source of the form "driver:dsn", for
// example "sqlite3:history.db" or "mysql:user@tcp(host)/bench".
func ParseSource(s string) (driverName, dataSourceName string, err error) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return "", "", fmt.Errorf("data source %q is not of the form driver:dsn", s)
	}
	return s[:i], s[i+1:], nil
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(driverName); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Uploads (
	UploadID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}}
);
CREATE TABLE IF NOT EXISTS Records (
	UploadID BIGINT UNSIGNED,
	RecordID BIGINT UNSIGNED,
	Date VARCHAR(64),
	Version VARCHAR(255),
	Mode VARCHAR(64),
	RMSE DOUBLE,
	CommitHash VARCHAR(64),
	Iterations BIGINT NULL,
{{if not .sqlite3}}
	Index (Version(100), Mode),
{{end}}
	PRIMARY KEY (UploadID, RecordID),
	FOREIGN KEY (UploadID) REFERENCES Uploads(UploadID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS RecordsVersionMode ON Records(Version, Mode);
{{end}}
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements(driverName string) error {
	var err error
	q := "INSERT INTO Uploads() VALUES ()"
	if driverName == "sqlite3" {
		q = "INSERT INTO Uploads DEFAULT VALUES"
	}
	db.insertUpload, err = db.sql.Prepare(q)
	if err != nil {
		return err
	}
	db.insertRecord, err = db.sql.Prepare("INSERT INTO Records(UploadID, RecordID, Date, Version, Mode, RMSE, CommitHash, Iterations) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	return nil
}

// An Upload is a set of records appended together, normally by one
// invocation of the appender. Records in an upload become visible
// only when the upload is committed.
type Upload struct {
	// ID is the upload's numeric primary key.
	ID int64

	// recordid is the index of the next record to insert.
	recordid int64
	// db is the underlying database that this upload is going to.
	db *DB
	// tx is the transaction used by the upload.
	tx *sql.Tx
}

// NewUpload returns an upload for storing new records. The caller
// must call Commit or Abort on the returned Upload.
func (db *DB) NewUpload(ctx context.Context) (*Upload, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	res, err := tx.StmtContext(ctx, db.insertUpload).ExecContext(ctx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &Upload{ID: id, db: db, tx: tx}, nil
}

// InsertRecord inserts a single record in an existing upload.
func (u *Upload) InsertRecord(ctx context.Context, r history.Record) error {
	var iters sql.NullInt64
	if r.Iterations != nil {
		iters = sql.NullInt64{Int64: int64(*r.Iterations), Valid: true}
	}
	mode := r.Mode
	if mode == "" {
		mode = history.DefaultMode
	}
	if _, err := u.tx.StmtContext(ctx, u.db.insertRecord).ExecContext(ctx, u.ID, u.recordid, r.Date, r.Version, mode, r.RMSE, r.Commit, iters); err != nil {
		return err
	}
	u.recordid++
	return nil
}

// Commit finishes processing the upload.
func (u *Upload) Commit() error {
	return u.tx.Commit()
}

// Abort cleans up resources associated with the upload.
// It does not attempt to clean up partial database state.
func (u *Upload) Abort() error {
	return u.tx.Rollback()
}

// Append inserts recs as one upload. Either every record is stored or
// none is.
func (db *DB) Append(ctx context.Context, recs []history.Record) (err error) {
	u, err := db.NewUpload(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			u.Abort()
		} else {
			err = u.Commit()
		}
	}()
	for _, r := range recs {
		if err := u.InsertRecord(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Records returns every stored record in the order it was appended,
// the same order the History Store file keeps.
func (db *DB) Records(ctx context.Context) ([]history.Record, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT Date, Version, Mode, RMSE, CommitHash, Iterations FROM Records ORDER BY UploadID, RecordID")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []history.Record
	for rows.Next() {
		var r history.Record
		var date, commit sql.NullString
		var iters sql.NullInt64
		if err := rows.Scan(&date, &r.Version, &r.Mode, &r.RMSE, &commit, &iters); err != nil {
			return nil, err
		}
		r.Date, r.Commit = date.String, commit.String
		if iters.Valid {
			n := int(iters.Int64)
			r.Iterations = &n
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CountUploads returns the number of uploads in the database.
func (db *DB) CountUploads() (int, error) {
	var uploads int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Uploads").Scan(&uploads)
	return uploads, err
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertUpload.Close(); err != nil {
		return err
	}
	if err := db.insertRecord.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
