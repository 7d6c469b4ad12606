package core

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const networkSchemaSQL = `
CREATE TABLE IF NOT EXISTS roads (
	road_id     INTEGER PRIMARY KEY,
	closed_loop INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS road_points (
	road_id INTEGER NOT NULL REFERENCES roads(road_id),
	seq     INTEGER NOT NULL,
	x       REAL NOT NULL,
	y       REAL NOT NULL,
	z       REAL NOT NULL,
	PRIMARY KEY (road_id, seq)
);
CREATE TABLE IF NOT EXISTS junctions (
	junction_id INTEGER PRIMARY KEY,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	z           REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS junction_roads (
	junction_id INTEGER NOT NULL REFERENCES junctions(junction_id),
	road_id     INTEGER NOT NULL,
	PRIMARY KEY (junction_id, road_id)
);
`

// SQLiteSource loads a network description stored in a SQLite database.
// Junction list order follows ascending junction_id.
type SQLiteSource struct {
	Path string
}

// OpenNetworkDB opens a SQLite network database.
func OpenNetworkDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s SQLiteSource) Load(ctx context.Context) (*NetworkDescription, error) {
	db, err := OpenNetworkDB(s.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return ReadNetworkSQLite(ctx, db)
}

// EnsureNetworkSchema creates the network tables if they do not exist.
func EnsureNetworkSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, networkSchemaSQL); err != nil {
		return fmt.Errorf("create network schema: %w", err)
	}
	return nil
}

// ReadNetworkSQLite reads every road and junction from db.
func ReadNetworkSQLite(ctx context.Context, db *sql.DB) (*NetworkDescription, error) {
	desc := &NetworkDescription{
		Roads:     []RoadRecord{},
		Junctions: []JunctionRecord{},
	}

	roadIndex := make(map[int]int)
	rows, err := db.QueryContext(ctx, `SELECT road_id, closed_loop FROM roads ORDER BY road_id`)
	if err != nil {
		return nil, fmt.Errorf("query roads: %w", err)
	}
	for rows.Next() {
		var id int
		var closed bool
		if err := rows.Scan(&id, &closed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan road: %w", err)
		}
		roadID := id
		roadIndex[id] = len(desc.Roads)
		desc.Roads = append(desc.Roads, RoadRecord{RoadID: &roadID, ClosedLoop: closed})
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read roads: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT road_id, x, y, z FROM road_points ORDER BY road_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("query road points: %w", err)
	}
	for rows.Next() {
		var id int
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan road point: %w", err)
		}
		idx, ok := roadIndex[id]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("%w: point for road %d", ErrUnknownRoad, id)
		}
		desc.Roads[idx].Path = append(desc.Roads[idx].Path, []float64{x, y, z})
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read road points: %w", err)
	}

	junctionIndex := make(map[int]int)
	rows, err = db.QueryContext(ctx, `SELECT junction_id, x, y, z FROM junctions ORDER BY junction_id`)
	if err != nil {
		return nil, fmt.Errorf("query junctions: %w", err)
	}
	for rows.Next() {
		var id int
		var x, y, z float64
		if err := rows.Scan(&id, &x, &y, &z); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan junction: %w", err)
		}
		junctionIndex[id] = len(desc.Junctions)
		desc.Junctions = append(desc.Junctions, JunctionRecord{
			Location:       []float64{x, y, z},
			ConnectedRoads: []int{},
		})
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read junctions: %w", err)
	}

	rows, err = db.QueryContext(ctx, `SELECT junction_id, road_id FROM junction_roads ORDER BY junction_id, road_id`)
	if err != nil {
		return nil, fmt.Errorf("query junction roads: %w", err)
	}
	for rows.Next() {
		var junctionID, roadID int
		if err := rows.Scan(&junctionID, &roadID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan junction road: %w", err)
		}
		idx, ok := junctionIndex[junctionID]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("%w: junction_roads row for junction %d", ErrUnknownJunction, junctionID)
		}
		desc.Junctions[idx].ConnectedRoads = append(desc.Junctions[idx].ConnectedRoads, roadID)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("read junction roads: %w", err)
	}

	return desc, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteNetworkSQLite stores desc in db inside a single transaction. Junction
// ids are the junction list indices.
func WriteNetworkSQLite(ctx context.Context, db *sql.DB, desc *NetworkDescription) error {
	if desc == nil {
		return fmt.Errorf("%w: nil description", ErrMalformedNetwork)
	}
	if err := EnsureNetworkSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, road := range desc.Roads {
		if road.RoadID == nil {
			return fmt.Errorf("%w: road %d: missing road_id", ErrMalformedNetwork, i)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO roads (road_id, closed_loop) VALUES (?, ?)`,
			*road.RoadID, road.ClosedLoop); err != nil {
			return fmt.Errorf("insert road %d: %w", *road.RoadID, err)
		}
		for seq, p := range road.Path {
			if len(p) != 3 {
				return fmt.Errorf("%w: road %d point %d: expected [x,y,z]", ErrMalformedNetwork, *road.RoadID, seq)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO road_points (road_id, seq, x, y, z) VALUES (?, ?, ?, ?, ?)`,
				*road.RoadID, seq, p[0], p[1], p[2]); err != nil {
				return fmt.Errorf("insert road %d point %d: %w", *road.RoadID, seq, err)
			}
		}
	}

	for i, j := range desc.Junctions {
		if len(j.Location) != 3 {
			return fmt.Errorf("%w: junction %d: expected [x,y,z]", ErrMalformedNetwork, i)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO junctions (junction_id, x, y, z) VALUES (?, ?, ?, ?)`,
			i, j.Location[0], j.Location[1], j.Location[2]); err != nil {
			return fmt.Errorf("insert junction %d: %w", i, err)
		}
		for _, roadID := range j.ConnectedRoads {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO junction_roads (junction_id, road_id) VALUES (?, ?)`,
				i, roadID); err != nil {
				return fmt.Errorf("insert junction %d road %d: %w", i, roadID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit network: %w", err)
	}
	return nil
}
