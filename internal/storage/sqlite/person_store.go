// Package sqlite implements the storage contract on an embedded SQLite
// database using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scrypster/warmconnector/internal/storage"
	"github.com/scrypster/warmconnector/pkg/types"
)

// PersonStore is a SQLite-backed storage.Store.
type PersonStore struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ storage.Store          = (*PersonStore)(nil)
	_ storage.NeighborLister = (*PersonStore)(nil)
)

// NewPersonStore opens (or creates) the database at dsn and applies Schema.
//
// If opening fails because of stale WAL files left by a crashed process, the
// files are removed and the open is retried once.
func NewPersonStore(dsn string) (*PersonStore, error) {
	store, err := openPersonStore(dsn)
	if err == nil {
		return store, nil
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isRecoverableWALError(err) || !isWALStale(dbPath) {
		return nil, err
	}

	slog.Warn("sqlite: stale WAL detected, attempting recovery", "path", dbPath, "error", err)
	removeStaleWAL(dbPath)

	store, retryErr := openPersonStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: open after WAL recovery: %w (original: %v)", retryErr, err)
	}
	slog.Info("sqlite: recovered from stale WAL", "path", dbPath)
	return store, nil
}

func openPersonStore(dsn string) (*PersonStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// A single connection serialises writers and keeps :memory: databases
	// alive across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &PersonStore{db: db}, nil
}

// GetDB returns the underlying connection pool.
func (s *PersonStore) GetDB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database.
func (s *PersonStore) Close() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("sqlite: wal checkpoint on close failed", "error", err)
	}
	return s.db.Close()
}

// StorePerson creates or updates a person.
func (s *PersonStore) StorePerson(ctx context.Context, p *types.Person) error {
	if p == nil || p.ID == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("sqlite: StorePerson: id and name are required: %w", storage.ErrInvalidInput)
	}

	education, greekLife, social, err := encodePersonJSON(p)
	if err != nil {
		return fmt.Errorf("sqlite: StorePerson: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO people (
			id, name, name_lower, company, company_lower, title, location, industry,
			education, greek_life, hometown, social_profiles, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_lower = excluded.name_lower,
			company = excluded.company,
			company_lower = excluded.company_lower,
			title = excluded.title,
			location = excluded.location,
			industry = excluded.industry,
			education = excluded.education,
			greek_life = excluded.greek_life,
			hometown = excluded.hometown,
			social_profiles = excluded.social_profiles,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, strings.ToLower(p.Name), p.Company, strings.ToLower(p.Company),
		p.Title, p.Location, p.Industry,
		education, greekLife, p.Hometown, social, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: StorePerson: %w", err)
	}
	return nil
}

// StoreRelationship creates or updates the edge keyed by (from, to, type).
func (s *PersonStore) StoreRelationship(ctx context.Context, e *types.RelationshipEdge) error {
	if e == nil {
		return fmt.Errorf("sqlite: StoreRelationship: nil edge: %w", storage.ErrInvalidInput)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("sqlite: StoreRelationship: %v: %w", err, storage.ErrInvalidInput)
	}

	evidence, err := encodeEvidence(e.Evidence)
	if err != nil {
		return fmt.Errorf("sqlite: StoreRelationship: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (from_id, to_id, type, strength, evidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, type) DO UPDATE SET
			strength = excluded.strength,
			evidence = excluded.evidence,
			updated_at = excluded.updated_at`,
		e.FromID, e.ToID, string(e.Type), e.Strength, evidence, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: StoreRelationship: %w", err)
	}
	return nil
}

const personColumns = `id, name, company, title, location, industry, education, greek_life, hometown, social_profiles`

// FindPeople returns people whose name (and optionally company) contains the
// given fragments, case-insensitively.
func (s *PersonStore) FindPeople(ctx context.Context, name, company string) ([]*types.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE name_lower LIKE ? ESCAPE '\'`
	args := []interface{}{"%" + storage.EscapeLike(strings.ToLower(name)) + "%"}

	if company != "" {
		query += ` AND company_lower LIKE ? ESCAPE '\'`
		args = append(args, "%"+storage.EscapeLike(strings.ToLower(company))+"%")
	}
	query += ` ORDER BY name, id LIMIT ?`
	args = append(args, storage.MaxPeoplePageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindPeople: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var people []*types.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: FindPeople: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: FindPeople: %w", err)
	}
	return people, nil
}

// GetPersonByID returns the person with the given id.
func (s *PersonStore) GetPersonByID(ctx context.Context, id string) (*types.Person, error) {
	if id == "" {
		return nil, fmt.Errorf("sqlite: GetPersonByID: empty id: %w", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: GetPersonByID %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetPersonByID: %w", err)
	}
	return p, nil
}

// GetPersonsByIDs fetches all requested people with a single IN query.
func (s *PersonStore) GetPersonsByIDs(ctx context.Context, ids []string) (map[string]*types.Person, error) {
	ids = uniqueStrings(ids)
	out := make(map[string]*types.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE id IN (`+buildInClause(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: GetPersonsByIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: GetPersonsByIDs: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: GetPersonsByIDs: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(r rowScanner) (*types.Person, error) {
	var (
		p                                            types.Person
		company, title, location, industry, hometown sql.NullString
		education, greekLife, social                 sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Name, &company, &title, &location, &industry,
		&education, &greekLife, &hometown, &social); err != nil {
		return nil, err
	}
	p.Company = company.String
	p.Title = title.String
	p.Location = location.String
	p.Industry = industry.String
	p.Hometown = hometown.String

	if err := decodePersonJSON(&p, education.String, greekLife.String, social.String); err != nil {
		return nil, err
	}
	return &p, nil
}

// encodePersonJSON serialises the structured person columns. Empty values are
// stored as NULL.
func encodePersonJSON(p *types.Person) (education, greekLife, social interface{}, err error) {
	if len(p.Education) > 0 {
		b, err := json.Marshal(p.Education)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal education: %w", err)
		}
		education = string(b)
	}
	if p.GreekLife != nil {
		b, err := json.Marshal(p.GreekLife)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal greek_life: %w", err)
		}
		greekLife = string(b)
	}
	if len(p.SocialProfiles) > 0 {
		b, err := json.Marshal(p.SocialProfiles)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal social_profiles: %w", err)
		}
		social = string(b)
	}
	return education, greekLife, social, nil
}

func decodePersonJSON(p *types.Person, education, greekLife, social string) error {
	if education != "" {
		if err := json.Unmarshal([]byte(education), &p.Education); err != nil {
			return fmt.Errorf("decode education for %s: %w", p.ID, err)
		}
	}
	if greekLife != "" {
		var gl types.GreekLifeRecord
		if err := json.Unmarshal([]byte(greekLife), &gl); err != nil {
			return fmt.Errorf("decode greek_life for %s: %w", p.ID, err)
		}
		p.GreekLife = &gl
	}
	if social != "" {
		if err := json.Unmarshal([]byte(social), &p.SocialProfiles); err != nil {
			return fmt.Errorf("decode social_profiles for %s: %w", p.ID, err)
		}
	}
	return nil
}

func encodeEvidence(ev types.Evidence) (interface{}, error) {
	if ev.IsEmpty() {
		return nil, nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	return string(b), nil
}

func decodeEvidence(raw sql.NullString) types.Evidence {
	var ev types.Evidence
	if !raw.Valid || raw.String == "" {
		return ev
	}
	if err := json.Unmarshal([]byte(raw.String), &ev); err != nil {
		slog.Warn("sqlite: undecodable relationship evidence ignored", "error", err)
		return types.Evidence{}
	}
	return ev
}
