package dump

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/randalmurphal/backupflow/artifact"
	"github.com/randalmurphal/backupflow/command"
)

// GlobalsSuffix marks the roles-and-tablespaces dump.
const GlobalsSuffix = "globals"

const discoverQuery = `SELECT datname FROM pg_database
WHERE datallowconn AND NOT datistemplate
ORDER BY datname`

// Catalog is the part of a PostgreSQL connection the job uses.
type Catalog interface {
	Ping(ctx context.Context) error
	Databases(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Dialer opens a Catalog for a connection string.
type Dialer func(ctx context.Context, dsn string) (Catalog, error)

// PostgreSQL dumps a PostgreSQL cluster with pg_dump and pg_dumpall.
// Passwords come from ~/.pgpass for both the tools and pgx.
type PostgreSQL struct {
	Host      string
	User      string
	DSN       string   // Enables the pgx readiness check; derived from Host and User if empty
	Databases []string // Empty means pg_dumpall, unless Discover is set
	Discover  bool     // Dump every connectable database found in pg_database
	Globals   bool     // Also dump roles and tablespaces
	Compress  bool
	Runner    command.Runner
	Dial      Dialer
}

// Kind implements Job.
func (p *PostgreSQL) Kind() string { return "postgresql" }

// Title implements Job.
func (p *PostgreSQL) Title() string { return "PostgreSQL Backup" }

// Preflight implements Job. With a DSN the server is pinged over pgx,
// otherwise pg_isready is run against Host.
func (p *PostgreSQL) Preflight(ctx context.Context) error {
	if p.DSN == "" {
		_, err := p.Runner.Run(command.Cmd{Name: "pg_isready", Args: []string{"-h", p.Host}})
		return err
	}

	cat, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer cat.Close(ctx)

	if err := cat.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", p.Host, err)
	}
	return nil
}

// Targets implements Job.
func (p *PostgreSQL) Targets(host string, date time.Time) []Target {
	targets := []Target{{
		Label:    "SQL backup",
		Name:     artifact.Name{Host: host, Date: date, Ext: "sql", Sep: "_"},
		Compress: p.Compress,
	}}
	if p.Globals {
		targets = append(targets, Target{
			Label:    "SQL globals backup",
			Name:     artifact.Name{Host: host, Date: date, Ext: "sql", Sep: "_", Suffix: GlobalsSuffix},
			Compress: p.Compress,
		})
	}
	return targets
}

// Dump implements Job.
func (p *PostgreSQL) Dump(ctx context.Context, target Target, path string) error {
	if target.Name.Suffix == GlobalsSuffix {
		_, err := p.Runner.Run(command.Cmd{
			Name:       "pg_dumpall",
			Args:       append(p.connArgs(), "--globals-only"),
			OutputFile: path,
		})
		return err
	}

	dbs, err := p.databases(ctx)
	if err != nil {
		return err
	}
	if len(dbs) == 0 {
		_, err := p.Runner.Run(command.Cmd{Name: "pg_dumpall", Args: p.connArgs(), OutputFile: path})
		return err
	}

	// Each database is appended to the same file, in order.
	for i, db := range dbs {
		_, err := p.Runner.Run(command.Cmd{
			Name:       "pg_dump",
			Args:       append(p.connArgs(), db),
			OutputFile: path,
			Append:     i > 0,
		})
		if err != nil {
			return fmt.Errorf("database %s: %w", db, err)
		}
	}
	return nil
}

func (p *PostgreSQL) connArgs() []string {
	return []string{"-h", p.Host, "-U", p.User}
}

func (p *PostgreSQL) databases(ctx context.Context) ([]string, error) {
	if len(p.Databases) > 0 || !p.Discover {
		return p.Databases, nil
	}

	cat, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer cat.Close(ctx)

	dbs, err := cat.Databases(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover databases: %w", err)
	}
	if len(dbs) == 0 {
		return nil, fmt.Errorf("discover databases: none found on %s", p.Host)
	}
	return dbs, nil
}

func (p *PostgreSQL) dial(ctx context.Context) (Catalog, error) {
	dsn := p.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s dbname=postgres", p.Host, p.User)
	}
	dial := p.Dial
	if dial == nil {
		dial = DialPgx
	}
	cat, err := dial(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", p.Host, err)
	}
	return cat, nil
}

// DialPgx connects with pgx.
func DialPgx(ctx context.Context, dsn string) (Catalog, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgxCatalog{conn: conn}, nil
}

type pgxCatalog struct {
	conn *pgx.Conn
}

func (c *pgxCatalog) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgxCatalog) Databases(ctx context.Context) ([]string, error) {
	rows, err := c.conn.Query(ctx, discoverQuery)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *pgxCatalog) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}
