package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"restables/internal/apperr"
	"restables/internal/security"
)

// EnvPrefix prefixes environment overrides of connection file values,
// e.g. RESTABLES_DATABASES_MAIN_PASSWORD.
const EnvPrefix = "RESTABLES"

// Connection describes one backing database.
type Connection struct {
	Dialect  string            `mapstructure:"dialect"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Database string            `mapstructure:"database"`
	Params   map[string]string `mapstructure:"params"`
	// ShowTables is the optional allow-list; nil means all tables.
	ShowTables []string `mapstructure:"show_tables"`
	HideTables []string `mapstructure:"hide_tables"`
}

// Visibility derives the table visibility policy for this connection.
func (c Connection) Visibility() security.Visibility {
	return security.Visibility{Show: c.ShowTables, Hide: c.HideTables}
}

// Connections maps connection names to their settings.
type Connections map[string]Connection

// Names returns the connection names in sorted order.
func (c Connections) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named connection or apperr.ErrConnectionNotFound.
func (c Connections) Lookup(name string) (Connection, error) {
	conn, ok := c[name]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", apperr.ErrConnectionNotFound, name)
	}
	return conn, nil
}

// Source supplies the current set of connections. Implementations may
// re-read their backing store on every call.
type Source interface {
	Connections() (Connections, error)
}

// StaticSource serves a fixed set of connections.
type StaticSource Connections

func (s StaticSource) Connections() (Connections, error) {
	return Connections(s), nil
}

// FileSource reads connections from a YAML (or any viper-supported) file on
// every call, so edits take effect without a restart. Connection names keep
// the case they are written with.
type FileSource struct {
	Path string
}

type connectionsFile struct {
	Databases map[string]Connection `mapstructure:"databases"`
}

func (f FileSource) Connections() (Connections, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read connections file %s: %w", f.Path, err)
	}

	v := viper.New()
	v.SetConfigType(configType(f.Path))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse connections file %s: %w", f.Path, err)
	}

	var file connectionsFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
	}

	// viper folds keys to lower case; map them back to the written names.
	names, err := databaseNames(data)
	if err != nil {
		return nil, fmt.Errorf("connections file %s: %w", f.Path, err)
	}
	conns := make(Connections, len(file.Databases))
	for key, c := range file.Databases {
		if written, ok := names[key]; ok {
			key = written
		}
		conns[key] = c
	}
	return conns, nil
}

func configType(path string) string {
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "yaml"
}

// databaseNames maps each lower-cased connection name to its spelling in the
// file. YAML is a superset of JSON, so both are covered; other formats yield
// no mapping and keep viper's lower-case names.
func databaseNames(data []byte) (map[string]string, error) {
	var raw struct {
		Databases map[string]any `yaml:"databases"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil
	}

	names := make(map[string]string, len(raw.Databases))
	for name := range raw.Databases {
		key := strings.ToLower(name)
		if prev, ok := names[key]; ok && prev != name {
			return nil, fmt.Errorf("connection names %q and %q differ only in case", prev, name)
		}
		names[key] = name
	}
	return names, nil
}
