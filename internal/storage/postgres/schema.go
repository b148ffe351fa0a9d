package postgres

// Schema creates the people and relationships tables. Every statement uses
// IF NOT EXISTS so it is safe to apply on each start.
const Schema = `
CREATE TABLE IF NOT EXISTS people (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	company         TEXT,
	title           TEXT,
	location        TEXT,
	industry        TEXT,
	education       JSONB,
	greek_life      JSONB,
	hometown        TEXT,
	social_profiles JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_people_lower_name ON people (lower(name));

CREATE TABLE IF NOT EXISTS relationships (
	from_id    TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	strength   INTEGER NOT NULL CHECK (strength BETWEEN 0 AND 100),
	evidence   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships (to_id);
`
