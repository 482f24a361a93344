package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[player]
fps = 60
turbo = true
max_frames = 900
keep_running = true
username = "griffpatch"

[limits]
max_clones = 50
max_call_depth = 64
warp_budget_ms = 100
max_list_length = 1000

[cloud]
enabled = false
store = "/var/lib/sb3vm/cloud.db"

[log]
verbosity = 2
file = "sb3vm.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Player.FPS != 60 {
		t.Errorf("fps = %d, want 60", c.Player.FPS)
	}
	if !c.Player.Turbo || !c.Player.KeepRunning {
		t.Errorf("turbo, keep_running = %v, %v, want true, true", c.Player.Turbo, c.Player.KeepRunning)
	}
	if c.Player.MaxFrames != 900 {
		t.Errorf("max_frames = %d, want 900", c.Player.MaxFrames)
	}
	if c.Player.Username != "griffpatch" {
		t.Errorf("username = %q, want griffpatch", c.Player.Username)
	}
	if c.Limits.MaxClones != 50 || c.Limits.MaxCallDepth != 64 || c.Limits.MaxListLength != 1000 {
		t.Errorf("limits = %+v", c.Limits)
	}
	if c.WarpBudget() != 100*time.Millisecond {
		t.Errorf("WarpBudget() = %v, want 100ms", c.WarpBudget())
	}
	if c.Cloud.Enabled {
		t.Error("cloud.enabled = true, want false")
	}
	if c.StorePath() != "/var/lib/sb3vm/cloud.db" {
		t.Errorf("StorePath() = %q", c.StorePath())
	}
	if p := c.LogPath(); p == nil || *p != filepath.Join(c.Dir, "sb3vm.log") {
		t.Errorf("LogPath() = %v", p)
	}
	if n := len(c.ExecutorOptions()); n != 4 {
		t.Errorf("ExecutorOptions() = %d options, want 4", n)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[player]
username = "someone"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Player.FPS != 30 {
		t.Errorf("fps = %d, want 30", c.Player.FPS)
	}
	if c.Limits.MaxCallDepth != 512 || c.Limits.MaxClones != 300 || c.Limits.MaxListLength != 200000 {
		t.Errorf("limits = %+v", c.Limits)
	}
	if c.WarpBudget() != 500*time.Millisecond {
		t.Errorf("WarpBudget() = %v, want 500ms", c.WarpBudget())
	}
	if !c.Cloud.Enabled {
		t.Error("cloud.enabled = false, want true")
	}
	if want := filepath.Join(c.Dir, ".sb3vm", "cloud.db"); c.StorePath() != want {
		t.Errorf("StorePath() = %q, want %q", c.StorePath(), want)
	}
	if c.LogPath() != nil {
		t.Errorf("LogPath() = %v, want nil", *c.LogPath())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[player\nfps = 30"},
		{"zero fps", "[player]\nfps = 0"},
		{"negative clones", "[limits]\nmax_clones = -1"},
		{"zero depth", "[limits]\nmax_call_depth = 0"},
		{"negative warp", "[limits]\nwarp_budget_ms = -5"},
		{"zero list", "[limits]\nmax_list_length = 0"},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		writeConfig(t, dir, tt.content)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: Load succeeded, want error", tt.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of empty dir succeeded, want error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[player]\nfps = 12\n")
	nested := filepath.Join(root, "games", "pong")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Player.FPS != 12 {
		t.Errorf("fps = %d, want 12", c.Player.FPS)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Player.FPS != 30 {
		t.Errorf("fps = %d, want 30", c.Player.FPS)
	}
	abs, _ := filepath.Abs(dir)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}
