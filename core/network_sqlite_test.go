package core

import (
	"context"
	"testing"
)

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenNetworkDB(":memory:")
	if err != nil {
		t.Fatalf("OpenNetworkDB: %v", err)
	}
	defer db.Close()

	desc := crossNetwork()
	desc.Roads[2].ClosedLoop = true
	if err := WriteNetworkSQLite(ctx, db, desc); err != nil {
		t.Fatalf("WriteNetworkSQLite: %v", err)
	}

	got, err := ReadNetworkSQLite(ctx, db)
	if err != nil {
		t.Fatalf("ReadNetworkSQLite: %v", err)
	}
	if len(got.Roads) != 4 || len(got.Junctions) != 5 {
		t.Fatalf("read %d roads, %d junctions; want 4, 5", len(got.Roads), len(got.Junctions))
	}
	if !got.Roads[2].ClosedLoop || got.Roads[1].ClosedLoop {
		t.Fatalf("closed_loop flags not preserved")
	}
	if n := len(got.Roads[0].Path); n != len(desc.Roads[0].Path) {
		t.Fatalf("road 0 has %d points, want %d", n, len(desc.Roads[0].Path))
	}
	if first := got.Roads[0].Path[0]; first[1] != -300 {
		t.Fatalf("road 0 first point = %v, want y=-300", first)
	}
	if roads := got.Junctions[1].ConnectedRoads; len(roads) != 4 {
		t.Fatalf("junction 1 roads = %v, want 4 entries", roads)
	}

	store := mustStore(t, got)
	if store.JunctionCount() != 5 {
		t.Fatalf("store junctions = %d, want 5", store.JunctionCount())
	}
}

func TestWriteNetworkSQLite_RejectsNil(t *testing.T) {
	db, err := OpenNetworkDB(":memory:")
	if err != nil {
		t.Fatalf("OpenNetworkDB: %v", err)
	}
	defer db.Close()
	if err := WriteNetworkSQLite(context.Background(), db, nil); err == nil {
		t.Fatalf("expected error for nil description")
	}
}

func TestReadNetworkSQLite_EmptySchema(t *testing.T) {
	ctx := context.Background()
	db, err := OpenNetworkDB(":memory:")
	if err != nil {
		t.Fatalf("OpenNetworkDB: %v", err)
	}
	defer db.Close()
	if err := EnsureNetworkSchema(ctx, db); err != nil {
		t.Fatalf("EnsureNetworkSchema: %v", err)
	}

	desc, err := ReadNetworkSQLite(ctx, db)
	if err != nil {
		t.Fatalf("ReadNetworkSQLite: %v", err)
	}
	if desc.Roads == nil || desc.Junctions == nil {
		t.Fatalf("empty database should yield empty, non-nil lists")
	}
	if _, err := NewNetworkStore(desc); err != nil {
		t.Fatalf("empty network should be valid: %v", err)
	}
}
