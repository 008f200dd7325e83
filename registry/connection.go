package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-unitboot/internal/hydrate"
	"github.com/goliatone/go-unitboot/keys"
)

// Service roles bound by the bootstrap.
const (
	RoleConnectionProvider = "connection-provider"
	RoleDataSourceLookup   = "datasource-lookup"
)

// DataSource hands out connections; *sql.DB satisfies it.
type DataSource interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// DataSourceLookup resolves data source names.
type DataSourceLookup interface {
	Lookup(name string) (DataSource, error)
}

// DataSourceMap is a DataSourceLookup over a fixed set of names.
type DataSourceMap map[string]DataSource

// Lookup implements DataSourceLookup.
func (m DataSourceMap) Lookup(name string) (DataSource, error) {
	ds, ok := m[name]
	if !ok || ds == nil {
		return nil, fmt.Errorf("unitboot: data source %q not found", name)
	}
	return ds, nil
}

// ConnectionProvider is the service bound to RoleConnectionProvider.
type ConnectionProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// DataSourceConnectionProvider delegates to a data source owned by the host.
// It is not Stoppable: the host closes what it supplied.
type DataSourceConnectionProvider struct {
	DataSource DataSource
	JTA        bool
}

// Conn implements ConnectionProvider.
func (p *DataSourceConnectionProvider) Conn(ctx context.Context) (*sql.Conn, error) {
	return p.DataSource.Conn(ctx)
}

// PoolConfig holds pooling settings for driver-managed connections.
type PoolConfig struct {
	MaxOpen     int      `json:"hibernate.connection.pool_size"`
	MaxIdle     int      `json:"hibernate.connection.pool_max_idle"`
	MaxLifetime Duration `json:"hibernate.connection.pool_max_lifetime"`
}

// Duration decodes Go duration strings or whole seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(raw []byte) error {
	var seconds int64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return fmt.Errorf("duration must be a string or whole seconds: %w", err)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

var poolDecoder = hydrate.NewDecoder[PoolConfig](
	hydrate.WithPreHook[PoolConfig](hydrate.NumericStrings),
	hydrate.WithDisallowUnknownFields[PoolConfig](),
	hydrate.WithPostHook[PoolConfig](func(ctx hydrate.Context, cfg *PoolConfig) error {
		if cfg.MaxOpen < 0 || cfg.MaxIdle < 0 || cfg.MaxLifetime < 0 {
			return fmt.Errorf("pool settings for %q must not be negative", ctx.Unit)
		}
		return nil
	}),
)

// DecodePoolConfig reads pool settings out of merged settings.
func DecodePoolConfig(settings map[string]any) (PoolConfig, error) {
	unit, _ := settings[keys.PersistenceUnitName].(string)
	fragment := hydrate.Fragment(settings, keys.PoolSize, keys.PoolMaxIdle, keys.PoolMaxLifetime)
	return poolDecoder.Decode(hydrate.Context{Fragment: "connection-pool", Unit: unit}, fragment)
}

// DriverConnectionProvider owns a database/sql pool opened from a URL and
// driver name. User and Password are added to URL-style DSNs that carry no
// credentials; other DSN formats must embed them.
type DriverConnectionProvider struct {
	Driver   string
	URL      string
	User     string
	Password string
	Pool     PoolConfig

	db *sql.DB
}

// Start opens and pings the pool.
func (p *DriverConnectionProvider) Start() error {
	db, err := sql.Open(p.Driver, dataSourceName(p.URL, p.User, p.Password))
	if err != nil {
		return err
	}
	if p.Pool.MaxOpen > 0 {
		db.SetMaxOpenConns(p.Pool.MaxOpen)
	}
	if p.Pool.MaxIdle > 0 {
		db.SetMaxIdleConns(p.Pool.MaxIdle)
	}
	if p.Pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(p.Pool.MaxLifetime))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	p.db = db
	return nil
}

// Stop closes the pool. It is safe to call more than once.
func (p *DriverConnectionProvider) Stop() error {
	if p.db == nil {
		return nil
	}
	db := p.db
	p.db = nil
	return db.Close()
}

// DB exposes the underlying pool, nil when stopped.
func (p *DriverConnectionProvider) DB() *sql.DB {
	return p.db
}

// Conn implements ConnectionProvider.
func (p *DriverConnectionProvider) Conn(ctx context.Context) (*sql.Conn, error) {
	if p.db == nil {
		return nil, fmt.Errorf("unitboot: connection provider stopped")
	}
	return p.db.Conn(ctx)
}

// ConnectionProviderInitiator binds RoleConnectionProvider from the merged
// connection settings: a data source reference first, then a URL.
type ConnectionProviderInitiator struct{}

// Role implements ServiceInitiator.
func (ConnectionProviderInitiator) Role() string { return RoleConnectionProvider }

// Initiate implements ServiceInitiator.
func (ConnectionProviderInitiator) Initiate(settings map[string]any, reg *StandardRegistry) (any, error) {
	if ref, jta := dataSourceReference(settings); ref != nil {
		ds, err := resolveDataSource(ref, reg)
		if err != nil {
			return nil, err
		}
		return &DataSourceConnectionProvider{DataSource: ds, JTA: jta}, nil
	}

	jdbcURL := firstString(settings, keys.URL, keys.JakartaJDBCURL, keys.JavaxJDBCURL)
	if jdbcURL == "" {
		return nil, nil
	}
	driver := firstString(settings, keys.Driver, keys.JakartaJDBCDriver, keys.JavaxJDBCDriver)
	if driver == "" {
		driver = driverFromURL(jdbcURL)
	}
	if driver == "" {
		return nil, fmt.Errorf("no driver configured for %q", jdbcURL)
	}
	pool, err := DecodePoolConfig(settings)
	if err != nil {
		return nil, err
	}
	return &DriverConnectionProvider{
		Driver:   driver,
		URL:      jdbcURL,
		User:     firstString(settings, keys.User, keys.JakartaJDBCUser, keys.JavaxJDBCUser),
		Password: firstString(settings, keys.Pass, keys.JakartaJDBCPassword, keys.JavaxJDBCPassword),
		Pool:     pool,
	}, nil
}

func dataSourceReference(settings map[string]any) (any, bool) {
	for _, key := range []string{keys.JakartaJTADataSource, keys.JavaxJTADataSource} {
		if value := settings[key]; value != nil {
			return value, true
		}
	}
	for _, key := range []string{keys.DataSource, keys.JakartaNonJTADataSource, keys.JavaxNonJTADataSource} {
		if value := settings[key]; value != nil {
			return value, false
		}
	}
	return nil, false
}

func resolveDataSource(ref any, reg *StandardRegistry) (DataSource, error) {
	switch v := ref.(type) {
	case DataSource:
		return v, nil
	case string:
		lookup, err := LookupService[DataSourceLookup](reg, RoleDataSourceLookup)
		if err != nil {
			return nil, err
		}
		if lookup == nil {
			return nil, fmt.Errorf("data source %q named but no lookup service is bound", v)
		}
		return lookup.Lookup(v)
	default:
		return nil, fmt.Errorf("data source reference of type %T is not usable", ref)
	}
}

func firstString(settings map[string]any, candidates ...string) string {
	for _, key := range candidates {
		if text, ok := settings[key].(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// driverFromURL infers a driver name from "jdbc:<driver>:..." or
// "<driver>://..." URLs.
func driverFromURL(jdbcURL string) string {
	rest := strings.TrimPrefix(jdbcURL, "jdbc:")
	idx := strings.Index(rest, ":")
	if idx <= 0 {
		return ""
	}
	return rest[:idx]
}

// dataSourceName adds user and password to a "[jdbc:]scheme://host/..." DSN
// without userinfo. Any other DSN is returned unchanged.
func dataSourceName(dsn, user, password string) string {
	if user == "" {
		return dsn
	}
	prefix, rest := "", dsn
	if strings.HasPrefix(rest, "jdbc:") {
		prefix, rest = "jdbc:", strings.TrimPrefix(rest, "jdbc:")
	}
	parsed, err := url.Parse(rest)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" || parsed.User != nil {
		return dsn
	}
	if password != "" {
		parsed.User = url.UserPassword(user, password)
	} else {
		parsed.User = url.User(user)
	}
	return prefix + parsed.String()
}
