package requests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadRegistryYAMLWithPayloadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "payloads/farm-2.json", `{"subject":"did:rl:farmland:2"}`)
	path := writeFile(t, dir, "requests.yaml", `
requests:
  - id: farm-1
    payload: '{"subject":"did:rl:farmland:1"}'
    labels:
      region: north
  - id: farm-2
    payload_file: payloads/farm-2.json
  - id: farm-3
    enabled: false
    payload: '{}'
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(reg.All()))
	}

	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled requests, got %#v", enabled)
	}
	if enabled[0].Labels["region"] != "north" {
		t.Fatalf("labels not carried: %#v", enabled[0].Labels)
	}
	if enabled[1].Payload != `{"subject":"did:rl:farmland:2"}` {
		t.Fatalf("payload_file not resolved: %q", enabled[1].Payload)
	}
	if _, ok := reg.ByID("farm-3"); !ok {
		t.Fatalf("ByID should return disabled entries too")
	}
}

func TestLoadRegistryJSONAndTOML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "requests.json", `{"requests":[{"id":"a","payload":"not even json"}]}`)
	tomlPath := writeFile(t, dir, "requests.toml", `
[[requests]]
id = "b"
payload = '{"subject":"x"}'
`)

	for path, wantID := range map[string]string{jsonPath: "a", tomlPath: "b"} {
		reg, err := LoadRegistry(path)
		if err != nil {
			t.Fatalf("LoadRegistry(%s): %v", path, err)
		}
		got := reg.Enabled()
		if len(got) != 1 || got[0].ID != wantID {
			t.Fatalf("%s: unexpected requests %#v", path, got)
		}
	}
}

func TestLoadRegistryRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing id":   "requests:\n  - payload: '{}'\n",
		"no payload":   "requests:\n  - id: a\n",
		"both payload": "requests:\n  - id: a\n    payload: '{}'\n    payload_file: x.json\n",
		"duplicate":    "requests:\n  - id: a\n    payload: '{}'\n  - id: a\n    payload: '{}'\n",
		"missing file": "requests:\n  - id: a\n    payload_file: nope.json\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "requests.yaml", raw)
			if _, err := LoadRegistry(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadRegistryEmptyPath(t *testing.T) {
	_, err := LoadRegistry("  ")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty path error, got %v", err)
	}
}
