// Package config holds the loader's configuration. Every knob is a
// command-line flag whose default is seeded from an environment variable, so
// `-help` lists all of them and a .env-style environment works unchanged.
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-batch_size=10"})
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"retailetl/internal/scripts"
)

// Config is the full process configuration.
type Config struct {
	// IO
	CSVFolder  string // Directory holding the sales exports.
	SQLFolder  string // Directory holding the warehouse scripts.
	SkippedDir string // Directory for bad-row CSV logs; empty disables them.

	// Destination database.
	DBDriver          string // mssql (alias sqlserver), postgres or sqlite.
	DSN               string // Full DSN; overrides the discrete parts below.
	Server            string // host, host,port or host\instance.
	Database          string
	TrustedConnection bool // mssql: integrated auth instead of DBUser/DBPassword.
	DBUser            string
	DBPassword        string

	StagingTable string
	FactTable    string

	// Load tunables.
	BatchSize   int
	CommitEvery int
	MaxBadRows  int

	// Scripts, by file name relative to SQLFolder.
	PreScripts  []string
	PostScripts []string

	// Metrics.
	MetricsBackend string // none, pushgateway or datadog.
	PushgatewayURL string
	DogStatsDAddr  string
	Job            string
}

// LoadFromArgs defines flags on fs seeded from getenv, then parses args.
// Explicit flags override environment values.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		switch strings.ToLower(strings.TrimSpace(getenv(k))) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	plan := scripts.DefaultPlan()
	var pre, post string

	fs.StringVar(&cfg.CSVFolder, "csv_folder", envOr("CSV_FOLDER", "."), "Directory with raw_offline_retail_sales_*.csv (or sales_*.csv)")
	fs.StringVar(&cfg.SQLFolder, "sql_folder", envOr("SQL_FOLDER", "."), "Directory with the warehouse .sql scripts")
	fs.StringVar(&cfg.SkippedDir, "skipped_dir", envOr("SKIPPED_DIR", "./skipped"), "Directory for bad-row CSV logs (empty disables)")

	fs.StringVar(&cfg.DBDriver, "db_driver", envOr("DB_DRIVER", "mssql"), "Database driver: mssql, postgres or sqlite")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN (overrides server/database/credentials)")
	fs.StringVar(&cfg.Server, "server", getenv("SERVER"), "Database server")
	fs.StringVar(&cfg.Database, "database", getenv("DATABASE"), "Database name (sqlite: file path)")
	fs.BoolVar(&cfg.TrustedConnection, "trusted_connection", boolEnvOr("SQL_TRUSTED_CONNECTION", true), "mssql: use integrated authentication")
	fs.StringVar(&cfg.DBUser, "db_user", getenv("DB_USER"), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", getenv("DB_PASSWORD"), "DB password")

	fs.StringVar(&cfg.StagingTable, "staging_table", envOr("STAGING_TABLE", "stg.SalesRaw"), "Staging table")
	fs.StringVar(&cfg.FactTable, "fact_table", envOr("FACT_TABLE", "dw.FactSales"), "Fact table counted after the load")

	fs.IntVar(&cfg.BatchSize, "batch_size", intEnvOr("BATCH_SIZE", 50000), "Rows per chunk transaction")
	fs.IntVar(&cfg.CommitEvery, "commit_every", intEnvOr("COMMIT_EVERY", 1000), "Fallback: commit after this many good rows")
	fs.IntVar(&cfg.MaxBadRows, "max_bad_rows", intEnvOr("MAX_BAD_ROWS", 10), "Fallback: stop after this many bad rows")

	fs.StringVar(&pre, "pre_scripts", envOr("PRE_SCRIPTS", strings.Join(plan.Pre, ",")), "Comma-separated scripts run before the load")
	fs.StringVar(&post, "post_scripts", envOr("POST_SCRIPTS", strings.Join(plan.Post, ",")), "Comma-separated scripts run after the load")

	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOr("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
	fs.StringVar(&cfg.DogStatsDAddr, "dogstatsd_addr", envOr("DOGSTATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address")
	fs.StringVar(&cfg.Job, "job", envOr("JOB", "retail_etl"), "Job name used for metrics")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.PreScripts = splitList(pre)
	cfg.PostScripts = splitList(post)
	return cfg, nil
}

// Load reads flag.CommandLine, os.Getenv and os.Args[1:].
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// Plan returns the configured script plan.
func (c *Config) Plan() scripts.Plan {
	return scripts.Plan{Pre: c.PreScripts, Post: c.PostScripts}
}

// StorageKind maps DBDriver to a storage kind.
func (c *Config) StorageKind() string {
	switch strings.ToLower(c.DBDriver) {
	case "sqlserver", "mssql":
		return "mssql"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return strings.ToLower(c.DBDriver)
	}
}

// ConnString builds the DSN for the configured driver. An explicit DSN wins.
func (c *Config) ConnString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.StorageKind() {
	case "mssql":
		return c.mssqlDSN()
	case "postgres":
		if c.Server == "" || c.Database == "" {
			return "", fmt.Errorf("config: postgres needs server and database or a DSN")
		}
		u := url.URL{Scheme: "postgres", Host: c.Server, Path: "/" + c.Database}
		if c.DBUser != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPassword)
		}
		return u.String(), nil
	case "sqlite":
		if c.Database == "" {
			return "", fmt.Errorf("config: sqlite needs a database file or a DSN")
		}
		return c.Database, nil
	default:
		return "", fmt.Errorf("config: unsupported db_driver %q", c.DBDriver)
	}
}

// mssqlDSN renders a sqlserver:// URL. "host,port" becomes host:port and
// "host\instance" puts the instance in the path. With a trusted connection
// no credentials are sent and the driver uses integrated auth.
func (c *Config) mssqlDSN() (string, error) {
	if c.Server == "" || c.Database == "" {
		return "", fmt.Errorf("config: mssql needs server and database or a DSN")
	}
	host, instance := c.Server, ""
	if i := strings.Index(host, `\`); i >= 0 {
		host, instance = host[:i], host[i+1:]
	}
	host = strings.Replace(host, ",", ":", 1)

	u := url.URL{Scheme: "sqlserver", Host: host}
	if instance != "" {
		u.Path = "/" + instance
	}
	if !c.TrustedConnection {
		if c.DBUser == "" || c.DBPassword == "" {
			return "", fmt.Errorf("config: DB_USER and DB_PASSWORD must be set when SQL_TRUSTED_CONNECTION=no")
		}
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	}
	q := url.Values{}
	q.Set("database", c.Database)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
