package catalog

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// LoadCards reads a card list. The extension selects the format: .json,
// .ndjson/.jsonl, anything else is opened as SQLite.
func LoadCards(ctx context.Context, path string) ([]Card, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".ndjson", ".jsonl":
		return loadNDJSON(path)
	default:
		return loadSQLite(ctx, path)
	}
}

func loadJSON(path string) ([]Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Data []Card `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return wrapped.Data, nil
	}
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return cards, nil
}

// loadNDJSON skips lines that fail to decode; exports often carry a few.
func loadNDJSON(path string) ([]Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	var cards []Card
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var card Card
		if err := json.Unmarshal(line, &card); err != nil {
			continue
		}
		cards = append(cards, card)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return cards, nil
}

// Column layouts seen in card databases, tried in order.
var sqliteLayouts = []struct {
	oracle, collector, set string
}{
	{"oracle_text", "collector_number", "set_code"},
	{"oracle_text", "collector_number", "\"set\""},
	{"oracle", "collector_number", "set_code"},
	{"oracle_text", "collector", "set_code"},
}

func loadSQLite(ctx context.Context, path string) ([]Card, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	defer db.Close()

	var lastErr error
	for _, layout := range sqliteLayouts {
		query := fmt.Sprintf(`SELECT CAST(COALESCE(id, '') AS TEXT), COALESCE(name, ''),
			COALESCE(%s, ''), CAST(COALESCE(%s, '') AS TEXT), COALESCE(%s, '') FROM cards`,
			layout.oracle, layout.collector, layout.set)
		cards, err := queryCards(ctx, db, query)
		if err == nil {
			return cards, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("read cards table: %w", lastErr)
}

func queryCards(ctx context.Context, db *sql.DB, query string) ([]Card, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.Name, &c.OracleText, &c.CollectorNumber, &c.SetCode); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
