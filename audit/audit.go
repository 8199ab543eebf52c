// Package audit keeps a durable trail of signing outcomes. Every
// terminal review lands here as one row: a uuid, the unpacked columns
// queries want, and the full record in protobuf wire form.
package audit

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ulikunitz/xz"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/wallet"
)

const schema = `
CREATE TABLE IF NOT EXISTS signing_records (
    id      TEXT PRIMARY KEY,
    time_ns INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    record  BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signing_records_time ON signing_records(time_ns);
`

// Store is the SQLite audit store.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Entry is one stored record with its identity.
type Entry struct {
	ID     uuid.UUID
	Record wallet.Record
}

// Option adjusts a Store.
type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open opens or creates the audit database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}

	s := &Store{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "audit")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Append stores one record and returns its assigned id.
func (s *Store) Append(rec wallet.Record) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(
		`INSERT INTO signing_records (id, time_ns, outcome, record) VALUES (?, ?, ?, ?)`,
		id.String(), rec.Time.UnixNano(), rec.Outcome.String(), marshalRecord(rec),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("audit: insert record: %w", err)
	}
	return id, nil
}

// Hook adapts the store to the wallet recorder callback. Append
// failures are logged, a signing reply never waits on the trail.
func (s *Store) Hook() func(wallet.Record) {
	return func(rec wallet.Record) {
		if _, err := s.Append(rec); err != nil {
			s.log.Error("audit append failed", "err", err)
		}
	}
}

// Count returns the number of stored records.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM signing_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count records: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, record FROM signing_records ORDER BY time_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query records: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var idText string
		var blob []byte
		if err := rows.Scan(&idText, &blob); err != nil {
			return nil, fmt.Errorf("audit: scan record: %w", err)
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			return nil, fmt.Errorf("audit: bad record id %q: %w", idText, err)
		}
		rec, err := unmarshalRecord(blob)
		if err != nil {
			return nil, fmt.Errorf("audit: decode record %s: %w", id, err)
		}
		out = append(out, Entry{ID: id, Record: rec})
	}
	return out, rows.Err()
}

// Export streams every record to w as an xz compressed sequence of
// length delimited envelopes, oldest first.
func (s *Store) Export(w io.Writer) error {
	rows, err := s.db.Query(
		`SELECT id, record FROM signing_records ORDER BY time_ns ASC`)
	if err != nil {
		return fmt.Errorf("audit: query records: %w", err)
	}
	defer rows.Close()

	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("audit: export: %w", err)
	}

	var n int
	for rows.Next() {
		var idText string
		var blob []byte
		if err := rows.Scan(&idText, &blob); err != nil {
			return fmt.Errorf("audit: scan record: %w", err)
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			return fmt.Errorf("audit: bad record id %q: %w", idText, err)
		}
		if _, err := xzw.Write(envelope(id, blob)); err != nil {
			return fmt.Errorf("audit: export: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("audit: export: %w", err)
	}
	s.log.Info("audit exported", "records", n)
	return nil
}

// ReadExport decodes a stream produced by Export.
func ReadExport(r io.Reader) ([]Entry, error) {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("audit: read export: %w", err)
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		return nil, fmt.Errorf("audit: read export: %w", err)
	}

	var out []Entry
	for len(data) > 0 {
		frame, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("audit: read export: %w", protowire.ParseError(n))
		}
		data = data[n:]
		entry, err := openEnvelope(frame)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// Envelope and record field numbers of the export wire format.
const (
	envFieldID     = 1
	envFieldRecord = 2

	recFieldTime     = 1
	recFieldPath     = 2
	recFieldCurve    = 3
	recFieldWithHash = 4
	recFieldOutcome  = 5
	recFieldHash     = 6
	recFieldScreens  = 7
)

func envelope(id uuid.UUID, record []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, envFieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, id[:])
	b = protowire.AppendTag(b, envFieldRecord, protowire.BytesType)
	b = protowire.AppendBytes(b, record)
	return protowire.AppendBytes(nil, b)
}

func openEnvelope(frame []byte) (Entry, error) {
	var entry Entry
	for len(frame) > 0 {
		num, typ, n := protowire.ConsumeTag(frame)
		if n < 0 {
			return entry, fmt.Errorf("audit: bad envelope: %w", protowire.ParseError(n))
		}
		frame = frame[n:]

		switch {
		case num == envFieldID && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(frame)
			if n < 0 {
				return entry, fmt.Errorf("audit: bad envelope: %w", protowire.ParseError(n))
			}
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return entry, fmt.Errorf("audit: bad envelope id: %w", err)
			}
			entry.ID = id
			frame = frame[n:]

		case num == envFieldRecord && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(frame)
			if n < 0 {
				return entry, fmt.Errorf("audit: bad envelope: %w", protowire.ParseError(n))
			}
			rec, err := unmarshalRecord(raw)
			if err != nil {
				return entry, err
			}
			entry.Record = rec
			frame = frame[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, frame)
			if n < 0 {
				return entry, fmt.Errorf("audit: bad envelope: %w", protowire.ParseError(n))
			}
			frame = frame[n:]
		}
	}
	return entry, nil
}

func marshalRecord(rec wallet.Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, recFieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Time.UnixNano()))
	b = protowire.AppendTag(b, recFieldPath, protowire.BytesType)
	b = protowire.AppendString(b, rec.Path)
	b = protowire.AppendTag(b, recFieldCurve, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Curve))
	if rec.WithHash {
		b = protowire.AppendTag(b, recFieldWithHash, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	b = protowire.AppendTag(b, recFieldOutcome, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Outcome))
	b = protowire.AppendTag(b, recFieldHash, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Hash)
	b = protowire.AppendTag(b, recFieldScreens, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Screens))
	return b
}

func unmarshalRecord(b []byte) (wallet.Record, error) {
	var rec wallet.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, fmt.Errorf("audit: bad record: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, fmt.Errorf("audit: bad record: %w", protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case recFieldTime:
				rec.Time = time.Unix(0, int64(v)).UTC()
			case recFieldCurve:
				rec.Curve = keychain.Curve(v)
			case recFieldWithHash:
				rec.WithHash = v != 0
			case recFieldOutcome:
				rec.Outcome = review.Outcome(v)
			case recFieldScreens:
				rec.Screens = int(v)
			}
			continue
		}

		if typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return rec, fmt.Errorf("audit: bad record: %w", protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case recFieldPath:
				rec.Path = string(raw)
			case recFieldHash:
				rec.Hash = append([]byte(nil), raw...)
			}
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return rec, fmt.Errorf("audit: bad record: %w", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return rec, nil
}
