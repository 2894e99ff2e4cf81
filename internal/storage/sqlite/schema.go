package sqlite

// schema is the bootstrap DDL: safe to re-run, using CREATE TABLE IF NOT EXISTS
// throughout. Columns added after the initial release live in migrations/ instead of
// here, per the migration runner's data-preservation contract.
const schema = `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS insights (
    id              TEXT PRIMARY KEY,
    text            TEXT NOT NULL,
    normalized_text TEXT NOT NULL DEFAULT '',
    frame           TEXT NOT NULL,
    domains         TEXT NOT NULL DEFAULT '[]',
    entities        TEXT NOT NULL DEFAULT '[]',
    problems        TEXT NOT NULL DEFAULT '[]',
    resolutions     TEXT NOT NULL DEFAULT '[]',
    contexts        TEXT NOT NULL DEFAULT '[]',
    confidence      REAL NOT NULL DEFAULT 1.0 CHECK(confidence >= 0 AND confidence <= 1),
    source          TEXT NOT NULL DEFAULT '',
    embedding       BLOB,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_insights_created_at ON insights(created_at);
CREATE INDEX IF NOT EXISTS idx_insights_frame ON insights(frame);

CREATE TABLE IF NOT EXISTS knowledge_bases (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    source_type TEXT NOT NULL DEFAULT 'text',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS kb_chunks (
    id              TEXT PRIMARY KEY,
    kb_id           TEXT NOT NULL,
    source_url      TEXT NOT NULL DEFAULT '',
    text            TEXT NOT NULL,
    normalized_text TEXT NOT NULL DEFAULT '',
    frame           TEXT NOT NULL,
    domains         TEXT NOT NULL DEFAULT '[]',
    entities        TEXT NOT NULL DEFAULT '[]',
    problems        TEXT NOT NULL DEFAULT '[]',
    resolutions     TEXT NOT NULL DEFAULT '[]',
    contexts        TEXT NOT NULL DEFAULT '[]',
    confidence      REAL NOT NULL DEFAULT 1.0 CHECK(confidence >= 0 AND confidence <= 1),
    embedding       BLOB,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (kb_id) REFERENCES knowledge_bases(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_kb ON kb_chunks(kb_id);

CREATE TABLE IF NOT EXISTS subjects (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    UNIQUE(name, kind)
);

CREATE INDEX IF NOT EXISTS idx_subjects_kind ON subjects(kind);

CREATE TABLE IF NOT EXISTS insight_subjects (
    insight_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    PRIMARY KEY (insight_id, subject_id),
    FOREIGN KEY (insight_id) REFERENCES insights(id) ON DELETE CASCADE,
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_insight_subjects_subject ON insight_subjects(subject_id);

CREATE TABLE IF NOT EXISTS kb_chunk_subjects (
    chunk_id   TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    PRIMARY KEY (chunk_id, subject_id),
    FOREIGN KEY (chunk_id) REFERENCES kb_chunks(id) ON DELETE CASCADE,
    FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS subject_relations (
    from_subject  TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    to_subject    TEXT NOT NULL,
    PRIMARY KEY (from_subject, relation_type, to_subject),
    FOREIGN KEY (from_subject) REFERENCES subjects(id) ON DELETE CASCADE,
    FOREIGN KEY (to_subject) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_subject_relations_to ON subject_relations(to_subject);

CREATE TABLE IF NOT EXISTS insight_relations (
    from_id       TEXT NOT NULL,
    to_id         TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    weight        REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (from_id, to_id, relation_type),
    FOREIGN KEY (from_id) REFERENCES insights(id) ON DELETE CASCADE,
    FOREIGN KEY (to_id) REFERENCES insights(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_insight_relations_from ON insight_relations(from_id, weight DESC);

CREATE TABLE IF NOT EXISTS config (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    task_id     TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'todo',
    owner       TEXT NOT NULL DEFAULT '',
    retry_count INTEGER NOT NULL DEFAULT 0,
    version     INTEGER NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

-- Enforces the exhaustive state-transition map (§4.7): any (OLD.status, NEW.status)
-- pair not listed here is rejected, regardless of whether the caller's CAS predicate
-- (status = :from AND version = :version) matched.
CREATE TRIGGER IF NOT EXISTS trg_tasks_legal_transition
BEFORE UPDATE ON tasks
WHEN NEW.status != OLD.status
BEGIN
    SELECT RAISE(ABORT, 'invalid task state transition')
    WHERE NOT (
        (OLD.status = 'todo'        AND NEW.status = 'in_progress')
        OR (OLD.status = 'todo'        AND NEW.status = 'canceled')
        OR (OLD.status = 'in_progress' AND NEW.status = 'done')
        OR (OLD.status = 'in_progress' AND NEW.status = 'failed')
        OR (OLD.status = 'in_progress' AND NEW.status = 'blocked')
        OR (OLD.status = 'in_progress' AND NEW.status = 'canceled')
        OR (OLD.status = 'blocked'     AND NEW.status = 'todo')
        OR (OLD.status = 'blocked'     AND NEW.status = 'canceled')
        OR (OLD.status = 'failed'      AND NEW.status = 'todo')
        OR (OLD.status = 'failed'      AND NEW.status = 'canceled')
    );
END;

CREATE TABLE IF NOT EXISTS task_dependencies (
    task_id            TEXT NOT NULL,
    depends_on_task_id TEXT NOT NULL,
    PRIMARY KEY (task_id, depends_on_task_id),
    FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE,
    FOREIGN KEY (depends_on_task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
);

-- Active locks get a partial unique index on the normalized resource path so that two
-- distinct tasks can never both hold an active lock on the exact same resource string;
-- prefix-overlap beyond exact matches is additionally enforced by the trigger below.
CREATE TABLE IF NOT EXISTS task_locks (
    id         TEXT PRIMARY KEY,
    task_id    TEXT NOT NULL,
    resource   TEXT NOT NULL,
    active     INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_task_locks_active_resource
    ON task_locks(resource) WHERE active = 1;

CREATE INDEX IF NOT EXISTS idx_task_locks_task ON task_locks(task_id) WHERE active = 1;

-- Enforces invariant 5: no two active locks held by distinct tasks may overlap by
-- path prefix (A == B, or one is a "/"-delimited prefix of the other).
CREATE TRIGGER IF NOT EXISTS trg_task_locks_no_prefix_overlap
BEFORE INSERT ON task_locks
WHEN NEW.active = 1
BEGIN
    SELECT RAISE(ABORT, 'lock conflict: overlapping resource')
    WHERE EXISTS (
        SELECT 1 FROM task_locks
        WHERE active = 1
          AND task_id != NEW.task_id
          AND (
              resource = NEW.resource
              OR resource LIKE NEW.resource || '/%'
              OR NEW.resource LIKE resource || '/%'
          )
    );
END;

CREATE TABLE IF NOT EXISTS task_events (
    id         TEXT PRIMARY KEY,
    task_id    TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor      TEXT NOT NULL DEFAULT '',
    payload    TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, created_at DESC);
`
