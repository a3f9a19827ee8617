// internal/config/config.go
//
// This package handles configuration and the .callsheet directory structure.
// Every desk that runs callsheet gets a .callsheet/ folder in its working
// directory holding config.yaml, the logs and (for the sqlite driver) the
// worklist database.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/callsheet/internal/worklist"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".callsheet"

	DriverSheets   = "sheets"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultTimeout = 10 * time.Second
)

const defaultProjectConfigYAML = `# callsheet configuration
version: 1

# Where the worklist lives. driver is sheets, sqlite or postgres.
# location is a spreadsheet id, a sqlite file path or a postgres url.
store:
  driver: sqlite
  location: .callsheet/worklist.db
  worksheet: Sheet1
  credentials_file: credentials.json

# Header names in the worklist. phone and status are required.
columns:
  name: NAMA
  phone: PHONE NUMBER
  id: USERNAME
  last_login: LAST LOGIN
  status: TERKIRIM

# Text written into the status column.
status:
  done: SENT
  invalid: INVALID

# Registration gateway. Secrets can live in .env instead:
#   CALLSHEET_API_USERNAME, CALLSHEET_API_PASSWORD, CALLSHEET_API_SESSION
api:
  base_url: http://127.0.0.1:8787
  country_code: "62"
  timeout: 10s
  username: admin
  password: ""
  session: default

messages:
  site: Amor77
  greeting: "Selamat {{.Greeting}} ka {{.Name}}"
  follow_up: "ingin konfirmasi mengenai ID kaka *{{.ExternalID}}* \nsejak *{{.LastLogin}}*\nDi situs {{.Site}}\nbelum dimainkan ya ka ? apakah ada kendala ?"

# Console hotkeys for the two message copies.
keys:
  copy_greeting: f1
  copy_follow_up: f2
`

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Driver          string `yaml:"driver"`
	Location        string `yaml:"location"`
	Worksheet       string `yaml:"worksheet,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// StatusTokens are the literal cell values for closed records.
type StatusTokens struct {
	Done    string `yaml:"done"`
	Invalid string `yaml:"invalid"`
}

// APIConfig describes the registration gateway.
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	CountryCode string `yaml:"country_code"`
	Timeout     string `yaml:"timeout,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	Session     string `yaml:"session,omitempty"`

	timeout time.Duration
}

// MessagesConfig holds the message templates.
type MessagesConfig struct {
	Site     string `yaml:"site"`
	Greeting string `yaml:"greeting"`
	FollowUp string `yaml:"follow_up"`
}

// KeysConfig binds the copy hotkeys.
type KeysConfig struct {
	CopyGreeting string `yaml:"copy_greeting"`
	CopyFollowUp string `yaml:"copy_follow_up"`
}

// ProjectConfig models .callsheet/config.yaml.
type ProjectConfig struct {
	Version  int              `yaml:"version"`
	Store    StoreConfig      `yaml:"store"`
	Columns  worklist.Columns `yaml:"columns"`
	Status   StatusTokens     `yaml:"status"`
	API      APIConfig        `yaml:"api"`
	Messages MessagesConfig   `yaml:"messages"`
	Keys     KeysConfig       `yaml:"keys"`
}

// Config holds the runtime configuration for callsheet.
type Config struct {
	// ProjectDir is the directory callsheet was started from (or --dir).
	ProjectDir string

	// StateDir is ProjectDir/.callsheet
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .callsheet directory structure in projectDir and
// writes a commented default config.yaml if none exists.
//
// Structure created:
// .callsheet/
// ├── config.yaml
// └── logs/        <- callsheet.log and journal.log
func InitDir(projectDir string) error {
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(dir, "config.yaml"))
}

// Load reads projectDir/.env and .callsheet/config.yaml, then applies
// CALLSHEET_* environment overrides. A missing config file yields defaults.
func Load(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", projectDir, err)
	}
	if err := loadDotEnv(filepath.Join(abs, ".env")); err != nil {
		return nil, err
	}
	cfg := &Config{
		ProjectDir: abs,
		StateDir:   filepath.Join(abs, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the operator journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// Schema returns the worklist schema described by the columns and status keys.
func (c *Config) Schema() worklist.Schema {
	return worklist.Schema{
		Columns:      c.Project.Columns,
		DoneToken:    c.Project.Status.Done,
		InvalidToken: c.Project.Status.Invalid,
	}
}

// APITimeout returns the parsed gateway timeout.
func (c *Config) APITimeout() time.Duration {
	if c.Project.API.timeout <= 0 {
		return defaultTimeout
	}
	return c.Project.API.timeout
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	parsed := defaultProjectConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.applyEnvOverrides()
	if err := parsed.normalize(c.ProjectDir); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	var pc ProjectConfig
	if err := yaml.Unmarshal([]byte(defaultProjectConfigYAML), &pc); err != nil {
		panic(fmt.Sprintf("config: default config does not parse: %v", err))
	}
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Store.Driver == "" {
		pc.Store.Driver = DriverSQLite
	}
	if pc.Store.Worksheet == "" {
		pc.Store.Worksheet = "Sheet1"
	}
	if pc.Store.CredentialsFile == "" {
		pc.Store.CredentialsFile = "credentials.json"
	}
	if pc.API.Session == "" {
		pc.API.Session = "default"
	}
	if pc.API.Timeout == "" {
		pc.API.Timeout = defaultTimeout.String()
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"CALLSHEET_API_BASE_URL", &pc.API.BaseURL},
		{"CALLSHEET_API_USERNAME", &pc.API.Username},
		{"CALLSHEET_API_PASSWORD", &pc.API.Password},
		{"CALLSHEET_API_SESSION", &pc.API.Session},
		{"CALLSHEET_STORE_DRIVER", &pc.Store.Driver},
		{"CALLSHEET_STORE_LOCATION", &pc.Store.Location},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.target = v
		}
	}
}

func (pc *ProjectConfig) normalize(base string) error {
	pc.Store.Driver = strings.ToLower(strings.TrimSpace(pc.Store.Driver))
	pc.Store.Location = strings.TrimSpace(pc.Store.Location)
	if pc.Store.Driver == DriverSQLite {
		pc.Store.Location = resolvePath(base, pc.Store.Location)
	}
	pc.Store.Worksheet = strings.TrimSpace(pc.Store.Worksheet)
	pc.Store.CredentialsFile = resolvePath(base, pc.Store.CredentialsFile)

	pc.Columns.Name = strings.TrimSpace(pc.Columns.Name)
	pc.Columns.Phone = strings.TrimSpace(pc.Columns.Phone)
	pc.Columns.ID = strings.TrimSpace(pc.Columns.ID)
	pc.Columns.LastLogin = strings.TrimSpace(pc.Columns.LastLogin)
	pc.Columns.Status = strings.TrimSpace(pc.Columns.Status)
	pc.Status.Done = strings.TrimSpace(pc.Status.Done)
	pc.Status.Invalid = strings.TrimSpace(pc.Status.Invalid)

	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.API.CountryCode = strings.TrimPrefix(strings.TrimSpace(pc.API.CountryCode), "+")
	pc.API.Username = strings.TrimSpace(pc.API.Username)
	pc.API.Session = strings.TrimSpace(pc.API.Session)
	timeout, err := time.ParseDuration(strings.TrimSpace(pc.API.Timeout))
	if err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}
	pc.API.timeout = timeout

	pc.Keys.CopyGreeting = strings.ToLower(strings.TrimSpace(pc.Keys.CopyGreeting))
	pc.Keys.CopyFollowUp = strings.ToLower(strings.TrimSpace(pc.Keys.CopyFollowUp))
	return nil
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.Store.Driver {
	case DriverSheets, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("store.driver must be 'sheets', 'sqlite' or 'postgres'")
	}
	if pc.Store.Location == "" {
		return fmt.Errorf("store.location is required")
	}
	if pc.Columns.Phone == "" || pc.Columns.Status == "" {
		return fmt.Errorf("columns.phone and columns.status are required")
	}
	if pc.Status.Done == "" || pc.Status.Invalid == "" {
		return fmt.Errorf("status.done and status.invalid are required")
	}
	if strings.EqualFold(pc.Status.Done, pc.Status.Invalid) {
		return fmt.Errorf("status.done and status.invalid must differ")
	}
	if pc.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !digitsOnly(pc.API.CountryCode) {
		return fmt.Errorf("api.country_code must be digits, got %q", pc.API.CountryCode)
	}
	if pc.API.timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if pc.Keys.CopyGreeting != "" && pc.Keys.CopyGreeting == pc.Keys.CopyFollowUp {
		return fmt.Errorf("keys.copy_greeting and keys.copy_follow_up must differ")
	}
	return nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
