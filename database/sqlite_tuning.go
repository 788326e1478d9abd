package database

import (
	"fmt"
	"net/url"
	"segbridge/config"
	"strings"
)

type sqlitePoolConfig struct {
	maxOpenConns int
	maxIdleConns int
	maxIdleSec   int
	maxLifeSec   int
}

// sanitizeSQLitePoolConfig enforces sensible bounds: maxOpenConns is at least 1,
// maxIdleConns is clamped to [0, maxOpenConns], and the lifetime values are
// never negative.
func sanitizeSQLitePoolConfig(cfg sqlitePoolConfig) sqlitePoolConfig {
	if cfg.maxOpenConns < 1 {
		cfg.maxOpenConns = 1
	}
	if cfg.maxIdleConns < 0 {
		cfg.maxIdleConns = 0
	}
	if cfg.maxIdleConns > cfg.maxOpenConns {
		cfg.maxIdleConns = cfg.maxOpenConns
	}
	if cfg.maxIdleSec < 0 {
		cfg.maxIdleSec = 0
	}
	if cfg.maxLifeSec < 0 {
		cfg.maxLifeSec = 0
	}
	return cfg
}

// buildSQLiteDSN constructs a SQLite DSN from dbPath and settings.
// When settings.SQLitePragmasEnabled is true it appends the PRAGMA parameters
// (busy_timeout, journal_mode, synchronous, foreign_keys) to the query portion,
// preserving any query parameters already present in dbPath.
func buildSQLiteDSN(dbPath string, settings *config.Config) string {
	base, rawQuery, _ := strings.Cut(dbPath, "?")

	query, _ := url.ParseQuery(rawQuery)

	if settings.SQLitePragmasEnabled {
		if settings.SQLiteBusyTimeoutMS > 0 {
			query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", settings.SQLiteBusyTimeoutMS))
		}
		if journalMode := normalizeSQLiteJournalMode(settings.SQLiteJournalMode); journalMode != "" {
			query.Add("_pragma", fmt.Sprintf("journal_mode(%s)", journalMode))
		}
		if synchronous := normalizeSQLiteSynchronous(settings.SQLiteSynchronous); synchronous != "" {
			query.Add("_pragma", fmt.Sprintf("synchronous(%s)", synchronous))
		}
		if settings.SQLiteForeignKeys {
			query.Add("_pragma", "foreign_keys(1)")
		} else {
			query.Add("_pragma", "foreign_keys(0)")
		}
	}

	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// currentSQLitePoolConfig builds a sqlitePoolConfig from the provided Config's
// SQLite connection pool settings and enforces sane bounds.
func currentSQLitePoolConfig(settings *config.Config) sqlitePoolConfig {
	return sanitizeSQLitePoolConfig(sqlitePoolConfig{
		maxOpenConns: settings.SQLiteMaxOpenConns,
		maxIdleConns: settings.SQLiteMaxIdleConns,
		maxIdleSec:   settings.SQLiteConnMaxIdleSec,
		maxLifeSec:   settings.SQLiteConnMaxLifeSec,
	})
}

// normalizeSQLiteJournalMode converts the input to an accepted uppercase SQLite
// journal mode, or returns an empty string if the value is invalid.
// Accepted modes: "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF".
func normalizeSQLiteJournalMode(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF":
		return value
	default:
		return ""
	}
}

// normalizeSQLiteSynchronous validates a SQLite `synchronous` pragma value.
// It returns the trimmed, uppercased value if it is one of `OFF`, `NORMAL`,
// `FULL`, `EXTRA` or the numeric strings `0` through `3`; otherwise it returns
// an empty string.
func normalizeSQLiteSynchronous(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch value {
	case "OFF", "NORMAL", "FULL", "EXTRA":
		return value
	case "0", "1", "2", "3":
		return value
	default:
		return ""
	}
}
