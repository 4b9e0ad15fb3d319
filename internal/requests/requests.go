// Package requests loads the batch registry of credential requests from
// YAML, JSON or TOML files.
package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atlas-sanctum/vrc-issuer/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Entry is a single request as declared in the registry file.
type Entry struct {
	ID          string            `json:"id" yaml:"id" toml:"id"`
	Enabled     *bool             `json:"enabled" yaml:"enabled" toml:"enabled"`
	Payload     string            `json:"payload" yaml:"payload" toml:"payload"`
	PayloadFile string            `json:"payload_file" yaml:"payload_file" toml:"payload_file"`
	Labels      map[string]string `json:"labels" yaml:"labels" toml:"labels"`
}

type configFile struct {
	Requests []Entry `json:"requests" yaml:"requests" toml:"requests"`
}

// Registry holds the loaded request entries with payloads resolved.
type Registry struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
	idx     map[string]Entry
}

// LoadRegistry loads the request registry from path. payload_file entries are
// resolved relative to the registry file and read eagerly.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("requests file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests file: %w", err)
	}

	file, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		path:    path,
		entries: make([]Entry, 0, len(file.Requests)),
		idx:     make(map[string]Entry, len(file.Requests)),
	}
	baseDir := filepath.Dir(path)
	for i := range file.Requests {
		entry := sanitizeEntry(file.Requests[i])
		if err := validateEntry(entry); err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		if _, exists := reg.idx[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate request id %q", entry.ID)
		}
		if entry.PayloadFile != "" {
			entry, err = resolvePayloadFile(baseDir, entry)
			if err != nil {
				return nil, fmt.Errorf("requests[%d]: %w", i, err)
			}
		}
		reg.entries = append(reg.entries, entry)
		reg.idx[entry.ID] = entry
	}
	return reg, nil
}

// parseRegistry decodes the file by extension, or tries every format when the
// extension is unknown.
func parseRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
		{name: "toml", ext: ".toml", fn: toml.Unmarshal},
	}

	known := false
	for _, d := range decoders {
		if d.ext == ext {
			known = true
		}
	}

	var lastErr error
	for _, d := range decoders {
		if known && ext != d.ext {
			continue
		}
		var file configFile
		if err := d.fn(data, &file); err != nil {
			lastErr = fmt.Errorf("decode %s requests: %w", d.name, err)
			continue
		}
		return file, nil
	}
	if lastErr != nil {
		return configFile{}, lastErr
	}
	return configFile{}, errors.New("requests file format not recognized (expected YAML, JSON or TOML)")
}

func sanitizeEntry(e Entry) Entry {
	e.ID = strings.TrimSpace(e.ID)
	e.PayloadFile = strings.TrimSpace(e.PayloadFile)
	if e.Enabled == nil {
		def := true
		e.Enabled = &def
	}
	if len(e.Labels) > 0 {
		labels := make(map[string]string, len(e.Labels))
		for k, v := range e.Labels {
			if k = strings.TrimSpace(k); k != "" {
				labels[k] = v
			}
		}
		e.Labels = labels
	}
	return e
}

func validateEntry(e Entry) error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Payload != "" && e.PayloadFile != "" {
		return fmt.Errorf("request %q sets both payload and payload_file", e.ID)
	}
	if e.Payload == "" && e.PayloadFile == "" {
		return fmt.Errorf("request %q needs payload or payload_file", e.ID)
	}
	return nil
}

func resolvePayloadFile(baseDir string, e Entry) (Entry, error) {
	path := e.PayloadFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read payload_file for %q: %w", e.ID, err)
	}
	e.Payload = string(raw)
	return e, nil
}

// Path returns the file the registry was loaded from.
func (r *Registry) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// ByID returns the entry by id.
func (r *Registry) ByID(id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.idx[strings.TrimSpace(id)]
	return e, ok
}

// All returns every entry in file order.
func (r *Registry) All() []Entry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Enabled returns enabled entries as domain requests.
func (r *Registry) Enabled() []domain.CredentialRequest {
	all := r.All()
	out := make([]domain.CredentialRequest, 0, len(all))
	for _, e := range all {
		if !e.EnabledValue() {
			continue
		}
		out = append(out, domain.CredentialRequest{
			ID:      e.ID,
			Payload: e.Payload,
			Labels:  e.Labels,
		})
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (e Entry) EnabledValue() bool {
	if e.Enabled == nil {
		return true
	}
	return *e.Enabled
}
