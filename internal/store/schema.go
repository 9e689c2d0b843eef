package store

// schema creates every table §4.3/§6 names if it doesn't already exist,
// plus the indexes the spec calls out explicitly. Grounded on the
// teacher's sibling module's SQLiteStore.initSchema pattern (single
// multi-statement CREATE TABLE IF NOT EXISTS block run once at open),
// borrowed from josephgoksu-TaskWing/internal/memory/sqlite.go since the
// teacher itself carries no SQL schema of its own.
const schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	abs_path TEXT NOT NULL,
	size INTEGER NOT NULL,
	last_modified INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	file_path TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	start_byte INTEGER NOT NULL,
	end_byte INTEGER NOT NULL,
	signature TEXT,
	return_type TEXT,
	parameters TEXT,
	parent_class TEXT
);
CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);

CREATE TABLE IF NOT EXISTS imports (
	id INTEGER PRIMARY KEY,
	module TEXT NOT NULL,
	file_path TEXT NOT NULL,
	line INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS calls (
	id INTEGER PRIMARY KEY,
	caller_file TEXT NOT NULL,
	callee TEXT NOT NULL,
	line INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS type_infos (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	type_annotation TEXT,
	inferred_type TEXT,
	file_path TEXT NOT NULL,
	line INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS import_links (
	id INTEGER PRIMARY KEY,
	importer_file TEXT NOT NULL,
	imported_module TEXT NOT NULL,
	imported_symbols TEXT,
	import_line INTEGER NOT NULL,
	definition_file TEXT,
	definition_symbol TEXT
);

CREATE TABLE IF NOT EXISTS method_calls (
	id INTEGER PRIMARY KEY,
	caller_file TEXT NOT NULL,
	line INTEGER NOT NULL,
	receiver TEXT NOT NULL,
	method TEXT NOT NULL,
	receiver_type TEXT
);

CREATE TABLE IF NOT EXISTS symbol_references (
	id INTEGER PRIMARY KEY,
	source_file TEXT NOT NULL,
	source_line INTEGER NOT NULL,
	source_symbol TEXT NOT NULL,
	reference_type TEXT NOT NULL,
	target_file TEXT,
	target_symbol TEXT NOT NULL,
	target_type TEXT,
	confidence REAL NOT NULL,
	resolution_method TEXT
);
CREATE INDEX IF NOT EXISTS idx_refs_source_symbol ON symbol_references(source_symbol);
CREATE INDEX IF NOT EXISTS idx_refs_target_symbol ON symbol_references(target_symbol);

CREATE TABLE IF NOT EXISTS embeddings_metadata (
	symbol_id INTEGER PRIMARY KEY,
	vector_store_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL,
	file_path TEXT NOT NULL,
	model TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blueprint_cache (
	cache_key TEXT PRIMARY KEY,
	blueprint_json TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	file_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blueprint_cache_file_path ON blueprint_cache(file_path);
CREATE INDEX IF NOT EXISTS idx_blueprint_cache_expires_at ON blueprint_cache(expires_at);

CREATE TABLE IF NOT EXISTS diff_metrics (
	id INTEGER PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	operation TEXT NOT NULL,
	file_path TEXT NOT NULL,
	lines_changed INTEGER NOT NULL,
	lines_total INTEGER NOT NULL,
	write_efficiency REAL NOT NULL,
	tokens_saved INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prediction_log (
	id INTEGER PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	method TEXT NOT NULL,
	params_hash TEXT NOT NULL,
	predicted_symbol TEXT,
	actual_symbol TEXT
);

CREATE TABLE IF NOT EXISTS action_log (
	id INTEGER PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	operation TEXT NOT NULL,
	symbol TEXT,
	file_path TEXT,
	outcome TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	last_activity INTEGER NOT NULL,
	query_count INTEGER NOT NULL DEFAULT 0,
	context TEXT
);

CREATE TABLE IF NOT EXISTS session_activity (
	id INTEGER PRIMARY KEY,
	session_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	method TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
	name, signature, file_path UNINDEXED, start_line UNINDEXED, tokenize='unicode61'
);
`
