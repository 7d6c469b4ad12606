package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/satnav/core"
	"github.com/signalsfoundry/satnav/model"
)

func intPtr(v int) *int { return &v }

// straightNetwork is J0 -R0- J1 -R1- J2 along the X axis, 300 units per road.
func straightNetwork() *core.NetworkDescription {
	road := func(id int, from float64) core.RoadRecord {
		var path [][]float64
		for x := from; x <= from+300; x += 30 {
			path = append(path, []float64{x, 0, 0})
		}
		return core.RoadRecord{RoadID: intPtr(id), Path: path}
	}
	return &core.NetworkDescription{
		Roads: []core.RoadRecord{road(0, 0), road(1, 300)},
		Junctions: []core.JunctionRecord{
			{Location: []float64{0, 0, 0}, ConnectedRoads: []int{0}},
			{Location: []float64{300, 0, 0}, ConnectedRoads: []int{0, 1}},
			{Location: []float64{600, 0, 0}, ConnectedRoads: []int{1}},
		},
	}
}

func TestReplayEmitsStraightThenArrival(t *testing.T) {
	svc := core.NewNavigationService(core.StaticSource{Description: straightNetwork()}, core.DefaultNavigationConfig())

	var poses []model.Pose
	for x := 0.0; x <= 600; x += 50 {
		poses = append(poses, model.Pose{X: x, Y: 1})
	}

	summary, err := replay(context.Background(), svc, poses, replayOptions{
		Destination: 2,
		Tick:        time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if summary.Ticks != len(poses) {
		t.Fatalf("ticks = %d, want %d", summary.Ticks, len(poses))
	}
	if len(summary.Events) != 2 {
		t.Fatalf("events = %+v, want straight then arrived", summary.Events)
	}
	first, second := summary.Events[0], summary.Events[1]
	if first.Kind != model.ManeuverStraight || first.Junction != 1 {
		t.Fatalf("first event = %+v, want straight at junction 1", first)
	}
	if first.Instruction != "Continue straight in 100m" {
		t.Fatalf("first instruction = %q", first.Instruction)
	}
	if second.Kind != model.ManeuverArrived || second.Junction != 2 {
		t.Fatalf("second event = %+v, want arrival at junction 2", second)
	}
	if summary.Final.Status != model.StatusArrived {
		t.Fatalf("final status = %q, want arrived", summary.Final.Status)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("events need distinct ids: %q %q", first.ID, second.ID)
	}
}

func TestReplayRejectsUnknownDestination(t *testing.T) {
	svc := core.NewNavigationService(core.StaticSource{Description: straightNetwork()}, core.DefaultNavigationConfig())
	_, err := replay(context.Background(), svc, []model.Pose{{X: 1}}, replayOptions{Destination: 7}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown destination")
	}
}

func TestExportNetworkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	jsonPath := filepath.Join(dir, "network.json.zst")
	if err := core.SaveNetwork(ctx, straightNetwork(), jsonPath); err != nil {
		t.Fatalf("SaveNetwork: %v", err)
	}

	for _, name := range []string{"network.db", "network.msgpack"} {
		out := filepath.Join(dir, name)
		if err := exportNetwork(ctx, core.SourceForPath(jsonPath), out); err != nil {
			t.Fatalf("exportNetwork %s: %v", name, err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("export %s not written: %v", name, err)
		}
		store, err := core.LoadNetwork(ctx, core.SourceForPath(out))
		if err != nil {
			t.Fatalf("LoadNetwork %s: %v", name, err)
		}
		if store.RoadCount() != 2 || store.JunctionCount() != 3 {
			t.Fatalf("%s: roads=%d junctions=%d, want 2/3", name, store.RoadCount(), store.JunctionCount())
		}
	}
}

func TestNetworkFormat(t *testing.T) {
	cases := map[string]string{
		"roads.json":        "json",
		"roads.msgpack.zst": "msgpack+zstd",
		"roads.sqlite":      "sqlite",
		"roads.txt":         "",
	}
	for path, want := range cases {
		if got := networkFormat(path); got != want {
			t.Errorf("networkFormat(%q) = %q, want %q", path, got, want)
		}
	}
}
