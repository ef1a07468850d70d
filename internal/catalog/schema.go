package catalog

// schemaStatements creates every table the coordinator's metadata catalog
// needs, grounded on original_source/db_setup.py's schema with one addition:
// chunks.node_name is a first-class column (§9/§13 Open Question
// resolution), replacing the reference's path-substring node matching.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS storage_tiers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tier_name TEXT NOT NULL UNIQUE CHECK(tier_name IN ('hot', 'warm', 'cold')),
		max_size INTEGER NOT NULL,
		retention_days INTEGER NOT NULL,
		auto_archive_days INTEGER,
		compression_level INTEGER CHECK(compression_level BETWEEN 0 AND 9),
		created_at TEXT NOT NULL,
		last_modified TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS retention_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		policy_name TEXT NOT NULL UNIQUE,
		min_versions INTEGER NOT NULL,
		max_versions INTEGER NOT NULL,
		retention_period_days INTEGER NOT NULL,
		auto_archive_enabled INTEGER DEFAULT 0,
		archive_after_days INTEGER,
		created_at TEXT NOT NULL,
		last_modified TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		current_version INTEGER NOT NULL DEFAULT 1,
		size INTEGER NOT NULL,
		compressed_size INTEGER NOT NULL,
		compression_ratio REAL NOT NULL,
		upload_timestamp TEXT NOT NULL,
		location TEXT NOT NULL,
		replicas TEXT,
		storage_tier TEXT CHECK(storage_tier IN ('hot', 'warm', 'cold')) DEFAULT 'hot',
		last_accessed TEXT,
		access_count INTEGER DEFAULT 0,
		retention_policy TEXT,
		is_archived INTEGER DEFAULT 0,
		archive_date TEXT,
		content_hash TEXT,
		deduplication_ref INTEGER,
		FOREIGN KEY(deduplication_ref) REFERENCES metadata(id),
		FOREIGN KEY(retention_policy) REFERENCES retention_policies(policy_name)
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		version_number INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		size INTEGER NOT NULL,
		compressed_size INTEGER NOT NULL,
		hash TEXT NOT NULL,
		storage_tier TEXT DEFAULT 'hot',
		is_archived INTEGER DEFAULT 0,
		FOREIGN KEY(file_id) REFERENCES metadata(id),
		UNIQUE(file_id, version_number)
	)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		version_number INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_location TEXT NOT NULL,
		node_name TEXT NOT NULL,
		original_size INTEGER NOT NULL,
		compressed_size INTEGER NOT NULL,
		chunk_hash TEXT NOT NULL,
		storage_tier TEXT DEFAULT 'hot',
		deduplication_ref TEXT,
		status TEXT CHECK(status IN ('pending', 'active', 'deprecated', 'archived')) NOT NULL DEFAULT 'pending',
		FOREIGN KEY(file_id) REFERENCES metadata(id)
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node_name TEXT NOT NULL UNIQUE,
		last_heartbeat TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS consistency_status (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		version_number INTEGER NOT NULL,
		node_name TEXT NOT NULL,
		status TEXT CHECK(status IN ('pending', 'synced', 'failed')) NOT NULL,
		last_update TEXT NOT NULL,
		FOREIGN KEY(file_id) REFERENCES metadata(id),
		UNIQUE(file_id, version_number, node_name)
	)`,
	`CREATE TABLE IF NOT EXISTS version_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		old_version INTEGER NOT NULL,
		new_version INTEGER NOT NULL,
		change_type TEXT NOT NULL CHECK(change_type IN ('create', 'update', 'rollback', 'revert')),
		change_description TEXT,
		user_id TEXT,
		timestamp TEXT NOT NULL,
		parent_version INTEGER,
		FOREIGN KEY(file_id) REFERENCES metadata(id)
	)`,
	`CREATE TABLE IF NOT EXISTS version_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		version_number INTEGER NOT NULL,
		tag_name TEXT NOT NULL,
		tag_description TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT,
		FOREIGN KEY(file_id) REFERENCES metadata(id),
		UNIQUE(file_id, version_number, tag_name)
	)`,
	`CREATE TABLE IF NOT EXISTS access_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		access_type TEXT NOT NULL,
		access_timestamp TEXT NOT NULL,
		user_id TEXT,
		FOREIGN KEY(file_id) REFERENCES metadata(id)
	)`,
	`CREATE TABLE IF NOT EXISTS deduplication (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_hash TEXT NOT NULL UNIQUE,
		reference_count INTEGER DEFAULT 1,
		total_space_saved INTEGER DEFAULT 0,
		first_seen TEXT NOT NULL,
		last_reference TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS archives (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		archive_date TEXT NOT NULL,
		archive_location TEXT NOT NULL,
		archive_size INTEGER NOT NULL,
		restore_count INTEGER DEFAULT 0,
		last_restore_date TEXT,
		archive_tier TEXT DEFAULT 'cold',
		FOREIGN KEY(file_id) REFERENCES metadata(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_file_version ON chunks(file_id, version_number)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_node ON chunks(node_name)`,
	`CREATE INDEX IF NOT EXISTS idx_versions_file ON versions(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_consistency_file_version ON consistency_status(file_id, version_number)`,
	`CREATE INDEX IF NOT EXISTS idx_version_changes_file ON version_changes(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_version_tags_file ON version_tags(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_storage_tier ON metadata(storage_tier)`,
	`CREATE INDEX IF NOT EXISTS idx_metadata_content_hash ON metadata(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_deduplication_hash ON deduplication(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_access_history_file ON access_history(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_archives_file ON archives(file_id)`,
}

// seedStatements inserts the default tiers and retention policy (§4.6),
// using db_setup.py's authoritative 1GB/5GB/10GB tier caps rather than the
// superseded 500MB variant from server.py's initialize_system_stats (§13).
var seedStatements = []string{
	`INSERT OR IGNORE INTO storage_tiers
		(tier_name, max_size, retention_days, auto_archive_days, compression_level, created_at, last_modified)
	VALUES
		('hot', 1000000000, 30, NULL, 1, datetime('now'), datetime('now')),
		('warm', 5000000000, 90, 60, 6, datetime('now'), datetime('now')),
		('cold', 10000000000, 365, 180, 9, datetime('now'), datetime('now'))`,
	`INSERT OR IGNORE INTO retention_policies
		(policy_name, min_versions, max_versions, retention_period_days, auto_archive_enabled, archive_after_days, created_at, last_modified)
	VALUES
		('default', 1, 10, 365, 1, 180, datetime('now'), datetime('now'))`,
}
