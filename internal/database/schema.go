package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Sheets table: one row per workbook table, with its header row
CREATE TABLE IF NOT EXISTS sheets (
    name TEXT PRIMARY KEY COLLATE NOCASE,
    header_json TEXT NOT NULL,  -- JSON array of column names
    created_at INTEGER NOT NULL
);

-- Sheet rows table: data rows in insertion order
CREATE TABLE IF NOT EXISTS sheet_rows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sheet TEXT NOT NULL COLLATE NOCASE,
    values_json TEXT NOT NULL,  -- JSON array of cell values in header order
    updated_at INTEGER NOT NULL,

    FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
);

-- Sheet cells table: free-form cells addressed by A1 reference
CREATE TABLE IF NOT EXISTS sheet_cells (
    sheet TEXT NOT NULL COLLATE NOCASE,
    ref TEXT NOT NULL COLLATE NOCASE,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL,

    PRIMARY KEY (sheet, ref),
    FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sheet_rows_sheet ON sheet_rows(sheet, id);
`
