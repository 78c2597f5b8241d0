package main

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func setSimulateFlags(scene, rules string, ticks int, format string) {
	simulateFlags.scene = scene
	simulateFlags.rules = rules
	simulateFlags.ticks = ticks
	simulateFlags.format = format
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeFile(t, dir, "scene.yaml", testScene)
	rules := dir + "/rules"
	writeFile(t, rules, "guards/neck.json", neckRule)
	writeFile(t, rules, "guards/broken.json", brokenRule)

	setSimulateFlags(scenePath, rules, 2, "json")
	out := captureOutput(t, simulateCmd)

	if err := simulate(simulateCmd, nil); err != nil {
		t.Fatalf("simulate() error = %v", err)
	}

	var report SimulationReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}

	if report.Ticks != 2 || report.Applied != 2 {
		t.Errorf("ticks = %d, applied = %d; want 2, 2", report.Ticks, report.Applied)
	}
	if len(report.Rejected) != 1 || !strings.HasSuffix(report.Rejected[0], "broken.json") {
		t.Errorf("rejected = %v, want broken.json", report.Rejected)
	}
	if len(report.Subjects) != 2 {
		t.Fatalf("subjects = %d, want 2", len(report.Subjects))
	}

	npc := report.Subjects[0]
	if npc.Subject != "npc" || len(npc.Rules) != 1 || len(npc.Joints) != 1 {
		t.Fatalf("npc pose = %+v", npc)
	}
	neck := npc.Joints[0]
	if neck.Joint != "neck" || math.Abs(neck.Rotate[0]) > 1e-9 {
		t.Errorf("npc neck = %+v, want identity rotation", neck)
	}

	player := report.Subjects[1]
	if player.Subject != "player" || len(player.Rules) != 0 || len(player.Joints) != 0 {
		t.Errorf("player pose = %+v, want no rules", player)
	}
}

func TestSimulateText(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeFile(t, dir, "scene.yaml", testScene)
	rules := dir + "/rules"
	writeFile(t, rules, "guards/neck.json", neckRule)

	setSimulateFlags(scenePath, rules, 1, "text")
	out := captureOutput(t, simulateCmd)

	if err := simulate(simulateCmd, nil); err != nil {
		t.Fatalf("simulate() error = %v", err)
	}
	for _, want := range []string{"npc", "rule " + rules + "/guards/neck.json", "player", "no rules"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSimulateErrors(t *testing.T) {
	dir := t.TempDir()
	scenePath := writeFile(t, dir, "scene.yaml", testScene)

	setSimulateFlags(dir+"/missing.yaml", dir, 1, "text")
	if err := simulate(simulateCmd, nil); err == nil {
		t.Error("simulate() with missing scene should fail")
	}

	setSimulateFlags(scenePath, dir, -1, "text")
	if err := simulate(simulateCmd, nil); err == nil {
		t.Error("simulate() with negative ticks should fail")
	}
}
