package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// Schema for the practice hub engine: catalog, sessions, progress summaries,
// and the interaction event log.
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_app_definitions",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_sessions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_progress_summaries",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_interaction_events",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS app_definitions (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	kind               TEXT NOT NULL,
	difficulty         TEXT NOT NULL,
	estimated_duration INTEGER NOT NULL DEFAULT 0,
	evidence_based     BOOLEAN NOT NULL DEFAULT FALSE,
	max_score          INTEGER NOT NULL DEFAULT 100,
	popularity_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	clinical_rating    DOUBLE PRECISION NOT NULL DEFAULT 0,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	position           INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_app_definitions_active
	ON app_definitions (active, position);
`

const migration001Down = `
DROP TABLE IF EXISTS app_definitions;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS sessions (
	id               UUID PRIMARY KEY,
	app_id           TEXT NOT NULL REFERENCES app_definitions (id),
	user_id          TEXT NOT NULL,
	kind             TEXT NOT NULL DEFAULT 'play',
	status           TEXT NOT NULL DEFAULT 'started',
	scored           BOOLEAN NOT NULL DEFAULT FALSE,
	score            INTEGER NOT NULL DEFAULT 0,
	max_score        INTEGER NOT NULL DEFAULT 100,
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	responses        BYTEA,
	interaction_data BYTEA
);

CREATE INDEX IF NOT EXISTS idx_sessions_user
	ON sessions (user_id, app_id);

CREATE INDEX IF NOT EXISTS idx_sessions_completed
	ON sessions (app_id, user_id)
	WHERE status = 'completed';
`

const migration002Down = `
DROP TABLE IF EXISTS sessions;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS progress_summaries (
	app_id         TEXT NOT NULL REFERENCES app_definitions (id),
	user_id        TEXT NOT NULL,
	total_sessions INTEGER NOT NULL DEFAULT 0,
	total_minutes  INTEGER NOT NULL DEFAULT 0,
	best_score     INTEGER NOT NULL DEFAULT 0,
	average_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	level          INTEGER NOT NULL DEFAULT 1,
	xp             INTEGER NOT NULL DEFAULT 0,
	achievements   TEXT[] NOT NULL DEFAULT '{}',
	streak         INTEGER NOT NULL DEFAULT 0,
	last_played_at TIMESTAMPTZ,
	mastery        TEXT NOT NULL DEFAULT 'novice',
	version        BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (app_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_progress_summaries_app
	ON progress_summaries (app_id, best_score DESC, xp DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS progress_summaries;
`

const migration004Up = `
CREATE TABLE IF NOT EXISTS interaction_events (
	id          UUID PRIMARY KEY,
	session_id  UUID NOT NULL,
	user_id     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	payload     BYTEA,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interaction_events_session
	ON interaction_events (session_id, occurred_at);
`

const migration004Down = `
DROP TABLE IF EXISTS interaction_events;
`
