package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credentials are optional; sqlite endpoints never need them.
type Credentials struct {
	User     string `json:"user" yaml:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// ConnectionConfig describes one endpoint. Label is the routing key and is
// unique across the configuration set.
type ConnectionConfig struct {
	Label       string            `json:"label" yaml:"label"`
	Driver      string            `json:"driver" yaml:"driver"`
	Host        string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port        int               `json:"port,omitempty" yaml:"port,omitempty"`
	Database    string            `json:"database,omitempty" yaml:"database,omitempty"`
	Credentials *Credentials      `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Tags        string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	ReadOnly    bool              `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Params      map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Validate checks a single config in isolation. Label uniqueness is the
// manager's business.
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Label) == "" {
		return errors.New("label is required")
	}
	adapter, ok := adapterFor(c.Driver)
	if !ok {
		return fmt.Errorf("%s: unknown driver %q", c.Label, c.Driver)
	}
	if adapter.NeedsHost() && c.Host == "" {
		return fmt.Errorf("%s: host is required for driver %s", c.Label, c.Driver)
	}
	if !adapter.NeedsHost() && c.Database == "" {
		return fmt.Errorf("%s: database path is required for driver %s", c.Label, c.Driver)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%s: port %d out of range", c.Label, c.Port)
	}
	return nil
}

// TagList returns the comma-separated tags, trimmed, without empties.
func (c ConnectionConfig) TagList() []string {
	var tags []string
	for _, t := range strings.Split(c.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Address is host:port for network drivers and the file path for sqlite.
func (c ConnectionConfig) Address() string {
	if c.Host == "" {
		return c.Database
	}
	if c.Port == 0 {
		return c.Host
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ConnectionConfig) clone() ConnectionConfig {
	out := c
	if c.Credentials != nil {
		creds := *c.Credentials
		out.Credentials = &creds
	}
	if c.Params != nil {
		out.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}

func cloneConfigs(cfgs []ConnectionConfig) []ConnectionConfig {
	out := make([]ConnectionConfig, len(cfgs))
	for i, c := range cfgs {
		out[i] = c.clone()
	}
	return out
}

// ConfigFormat selects the on-disk encoding of a config list.
type ConfigFormat string

const (
	FormatJSON ConfigFormat = "json"
	FormatYAML ConfigFormat = "yaml"
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) (ConfigFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

type configFile struct {
	Connections []ConnectionConfig `json:"connections" yaml:"connections"`
}

// EncodeConfigs writes cfgs in the given format.
func EncodeConfigs(w io.Writer, format ConfigFormat, cfgs []ConnectionConfig) error {
	doc := configFile{Connections: cfgs}
	if doc.Connections == nil {
		doc.Connections = []ConnectionConfig{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DecodeConfigs reads a config list. An empty document decodes to an empty
// list.
func DecodeConfigs(r io.Reader, format ConfigFormat) ([]ConnectionConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc configFile
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s configs: %w", format, err)
	}
	return doc.Connections, nil
}

// Store persists the ordered configuration set.
type Store interface {
	Load() ([]ConnectionConfig, error)
	Save(cfgs []ConnectionConfig) error
}

// FileStore keeps the configuration set in a single JSON or YAML file.
type FileStore struct {
	path   string
	format ConfigFormat
}

func NewFileStore(path string) (*FileStore, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, format: format}, nil
}

func (s *FileStore) Path() string { return s.path }

// Load returns an empty set when the file does not exist yet.
func (s *FileStore) Load() ([]ConnectionConfig, error) {
	return readConfigFile(s.path)
}

// Save replaces the file atomically.
func (s *FileStore) Save(cfgs []ConnectionConfig) error {
	return writeConfigFile(s.path, s.format, cfgs)
}

func readConfigFile(path string) ([]ConnectionConfig, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	return DecodeConfigs(f, format)
}

func writeConfigFile(path string, format ConfigFormat, cfgs []ConnectionConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeConfigs(tmp, format, cfgs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode configs: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config file: %w", err)
	}
	// Credentials may be stored in the file.
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// memoryStore is used when no store path is configured.
type memoryStore struct {
	cfgs []ConnectionConfig
}

func (s *memoryStore) Load() ([]ConnectionConfig, error) { return cloneConfigs(s.cfgs), nil }

func (s *memoryStore) Save(cfgs []ConnectionConfig) error {
	s.cfgs = cloneConfigs(cfgs)
	return nil
}
