package sqlite

// Schema is applied on every open. All statements are idempotent.
//
// name_lower and company_lower hold lower-cased copies so substring search
// can use an index-friendly comparison for non-ASCII names as well.
const Schema = `
CREATE TABLE IF NOT EXISTS people (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	name_lower      TEXT NOT NULL,
	company         TEXT,
	company_lower   TEXT,
	title           TEXT,
	location        TEXT,
	industry        TEXT,
	education       TEXT,
	greek_life      TEXT,
	hometown        TEXT,
	social_profiles TEXT,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_people_name_lower ON people(name_lower);
CREATE INDEX IF NOT EXISTS idx_people_company_lower ON people(company_lower);

CREATE TABLE IF NOT EXISTS relationships (
	from_id    TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	strength   INTEGER NOT NULL CHECK (strength BETWEEN 0 AND 100),
	evidence   TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
`
