package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/hoshinonyaruko/snakeview/structs"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

const createPreferencesTableSQL = `
CREATE TABLE IF NOT EXISTS Preferences (
    Key TEXT PRIMARY KEY,
    Value TEXT
);
`

const (
	keyTheme          = "theme"
	keyViewportWidth  = "viewport_width"
	keyViewportHeight = "viewport_height"
)

// Store persists presentation preferences. It never stores game state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// sqlite 单写者，避免 database is locked
	db.SetMaxOpenConns(1)
	if err := InitializeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func InitializeDatabase(db *sql.DB) error {
	if _, err := db.Exec(createPreferencesTableSQL); err != nil {
		return fmt.Errorf("error executing SQL statement: %s: %w", createPreferencesTableSQL, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPreferences returns the stored preferences, falling back to defaults
// for anything missing or unreadable.
func (s *Store) LoadPreferences(defaults structs.Preferences) (structs.Preferences, error) {
	prefs := defaults

	rows, err := s.db.Query("SELECT Key, Value FROM Preferences")
	if err != nil {
		return defaults, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return defaults, fmt.Errorf("scan preference: %w", err)
		}
		switch key {
		case keyTheme:
			prefs.Theme = value
		case keyViewportWidth, keyViewportHeight:
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				log.WithField("key", key).WithField("value", value).Warn("Ignoring stored preference")
				continue
			}
			if key == keyViewportWidth {
				prefs.Viewport.Width = n
			} else {
				prefs.Viewport.Height = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("read preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences writes all preferences in one transaction.
func (s *Store) SavePreferences(prefs structs.Preferences) (err error) {
	// 开启事务
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	values := map[string]string{
		keyTheme:          prefs.Theme,
		keyViewportWidth:  strconv.Itoa(prefs.Viewport.Width),
		keyViewportHeight: strconv.Itoa(prefs.Viewport.Height),
	}
	for key, value := range values {
		if _, err = tx.Exec("INSERT OR REPLACE INTO Preferences (Key, Value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	// 提交事务
	return tx.Commit()
}
