package sqlite

// schema keeps embeddings_fts in sync with embeddings through triggers so
// document filters can use FTS5 MATCH.
const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	dimension INTEGER,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS embeddings (
	seq INTEGER PRIMARY KEY,
	collection_id INTEGER NOT NULL REFERENCES collections(id),
	id TEXT NOT NULL,
	embedding BLOB NOT NULL,
	document TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	UNIQUE(collection_id, id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS embeddings_fts USING fts5(
	document,
	content=embeddings,
	content_rowid=seq,
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS embeddings_ai AFTER INSERT ON embeddings BEGIN
	INSERT INTO embeddings_fts(rowid, document) VALUES (new.seq, new.document);
END;

CREATE TRIGGER IF NOT EXISTS embeddings_ad AFTER DELETE ON embeddings BEGIN
	INSERT INTO embeddings_fts(embeddings_fts, rowid, document) VALUES ('delete', old.seq, old.document);
END;

CREATE TRIGGER IF NOT EXISTS embeddings_au AFTER UPDATE ON embeddings BEGIN
	INSERT INTO embeddings_fts(embeddings_fts, rowid, document) VALUES ('delete', old.seq, old.document);
	INSERT INTO embeddings_fts(rowid, document) VALUES (new.seq, new.document);
END;
`
