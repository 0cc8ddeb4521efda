package store

var Schema string = `
CREATE TABLE IF NOT EXISTS bookmarks
(
    id   INTEGER PRIMARY KEY,

    url TEXT NOT NULL,
    title TEXT DEFAULT '',
    summary TEXT DEFAULT '',
    category TEXT DEFAULT '',

    embedding_model TEXT,
    embedding_vector BLOB,

    created_at INTEGER DEFAULT (strftime('%s', 'now')),
    updated_at INTEGER DEFAULT (strftime('%s', 'now')),

    CONSTRAINT unique_url UNIQUE (url)

);`
