// Package catalog answers questions about archived games with DuckDB queries
// straight over the Parquet shards.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

var ErrGameNotFound = errors.New("game not found")

// GameSummary is one entry of the games list.
type GameSummary struct {
	GameID    string `json:"game_id"`
	MinTurn   int32  `json:"min_turn"`
	MaxTurn   int32  `json:"max_turn"`
	TurnCount int32  `json:"turn_count"`
	Width     int32  `json:"width"`
	Height    int32  `json:"height"`
	Ruleset   string `json:"ruleset"`
	Source    string `json:"source"`
	File      string `json:"file"`
	// Winner is empty for draws and unfinished games.
	Winner string `json:"winner"`
}

type SourceSummary struct {
	Source string `json:"source"`
	Games  int64  `json:"games"`
	Turns  int64  `json:"turns"`
}

// Catalog is a DuckDB view over every archive shard below its roots. Shards
// written after Open are picked up by the next query.
type Catalog struct {
	roots []string

	mu sync.Mutex
	db *sql.DB
	// empty tracks whether the current view is the placeholder for no shards.
	empty bool
	ready bool
}

func Open(roots []string) (*Catalog, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")
	return &Catalog{roots: roots, db: db}, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// refresh points the turns view at the shards, or at an empty placeholder
// while there are none, since read_parquet fails on a glob without matches.
func (c *Catalog) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	empty := !hasShards(c.roots)
	if c.ready && empty == c.empty {
		return nil
	}

	var sqlText string
	if empty {
		sqlText = `CREATE OR REPLACE VIEW turns AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS game_id,
					NULL::INTEGER AS turn,
					NULL::INTEGER AS width,
					NULL::INTEGER AS height,
					NULL::VARCHAR AS ruleset,
					NULL::STRUCT(
						id VARCHAR,
						alive BOOLEAN,
						health INTEGER,
						policy INTEGER,
						score REAL,
						value REAL
					)[] AS snakes,
					NULL::VARCHAR AS source,
					NULL::VARCHAR AS filename
			) WHERE 1=0`
	} else {
		globs := make([]string, 0, len(c.roots))
		filters := make([]string, 0, len(c.roots))
		for _, root := range c.roots {
			if root = strings.TrimSpace(root); root != "" {
				globs = append(globs, "'"+escapeSQLString(filepath.Join(root, "**", "*.parquet"))+"'")
				// Only the writer's own tmp dir directly below a root is in flight.
				inflight := filepath.Join(root, "tmp") + string(filepath.Separator)
				filters = append(filters, "NOT starts_with(filename, '"+escapeSQLString(inflight)+"')")
			}
		}
		sqlText = `CREATE OR REPLACE VIEW turns AS
			SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
			WHERE ` + strings.Join(filters, " AND ")
	}
	if _, err := c.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("create turns view: %w", err)
	}
	c.empty, c.ready = empty, true
	return nil
}

func hasShards(roots []string) bool {
	found := false
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || found {
				return filepath.SkipAll
			}
			if d.IsDir() {
				if d.Name() == "tmp" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
				found = true
				return filepath.SkipAll
			}
			return nil
		})
		if found {
			return true
		}
	}
	return false
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (c *Catalog) GamesTotal(ctx context.Context) (int64, error) {
	if err := c.refresh(ctx); err != nil {
		return 0, err
	}
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT game_id) FROM turns`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// normalizeSort maps user-facing keys onto column aliases. Nothing from the
// caller reaches the SQL text except through this whitelist.
func normalizeSort(sortKey, sortDir string) (string, string) {
	sd := strings.ToLower(strings.TrimSpace(sortDir))
	if sd != "asc" && sd != "desc" {
		sd = "desc"
	}
	switch strings.ToLower(strings.TrimSpace(sortKey)) {
	case "id", "game", "game_id":
		return "g.game_id", sd
	case "turns", "turn_count":
		return "g.turn_count", sd
	case "source":
		return "g.source", sd
	case "ruleset":
		return "g.ruleset", sd
	case "file", "filename":
		return "g.file", sd
	}
	return "g.file", "desc"
}

// Games lists one page of game summaries.
func (c *Catalog) Games(ctx context.Context, limit, offset int, sortKey, sortDir string) ([]GameSummary, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	sk, sd := normalizeSort(sortKey, sortDir)

	query := `WITH game_stats AS (
		SELECT
			game_id,
			MIN(turn)::INTEGER AS min_turn,
			MAX(turn)::INTEGER AS max_turn,
			(MAX(turn) - MIN(turn) + 1)::INTEGER AS turn_count,
			MIN(width)::INTEGER AS width,
			MIN(height)::INTEGER AS height,
			MIN(ruleset)::VARCHAR AS ruleset,
			MIN(source)::VARCHAR AS source,
			MIN(filename)::VARCHAR AS file
		FROM turns
		GROUP BY game_id
	),
	winners AS (
		SELECT game_id, string_agg(DISTINCT sn.id, ',') AS winner
		FROM (SELECT game_id, unnest(snakes) AS sn FROM turns)
		WHERE sn.value = 1
		GROUP BY game_id
	)
	SELECT g.game_id, g.min_turn, g.max_turn, g.turn_count, g.width, g.height,
		g.ruleset, g.source, g.file, COALESCE(w.winner, '')
	FROM game_stats g
	LEFT JOIN winners w ON g.game_id = w.game_id
	ORDER BY ` + sk + ` ` + sd + `, g.game_id
	LIMIT ? OFFSET ?`

	rows, err := c.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.GameID, &g.MinTurn, &g.MaxTurn, &g.TurnCount, &g.Width, &g.Height, &g.Ruleset, &g.Source, &g.File, &g.Winner); err != nil {
			return nil, err
		}
		g.File = c.relative(g.File)
		out = append(out, g)
	}
	return out, rows.Err()
}

// GameFile returns the absolute shard path holding gameID.
func (c *Catalog) GameFile(ctx context.Context, gameID string) (string, error) {
	if err := c.refresh(ctx); err != nil {
		return "", err
	}
	var file string
	err := c.db.QueryRowContext(ctx, `SELECT MIN(filename) FROM turns WHERE game_id = ? HAVING COUNT(*) > 0`, gameID).Scan(&file)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", gameID, ErrGameNotFound)
	}
	if err != nil {
		return "", err
	}
	return file, nil
}

// Sources counts games and turns per archive source.
func (c *Catalog) Sources(ctx context.Context) ([]SourceSummary, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT source, COUNT(DISTINCT game_id), COUNT(*) FROM turns GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var s SourceSummary
		if err := rows.Scan(&s.Source, &s.Games, &s.Turns); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *Catalog) relative(filename string) string {
	for _, root := range c.roots {
		rel, err := filepath.Rel(root, filename)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return filename
}
