// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS calculations (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	source TEXT NOT NULL,
	pair TEXT NOT NULL,
	atr REAL NOT NULL,
	tp_percent REAL NOT NULL,
	tp_pips REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_time ON calculations(time);
`
