package config

import (
	"fmt"
	"os"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c without touching the database.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if err := dirExists(c.CSVFolder); err != nil {
		add(SeverityError, "csv_folder", "CSV folder does not exist: %v", err)
	}
	sqlOK := true
	if err := dirExists(c.SQLFolder); err != nil {
		sqlOK = false
		add(SeverityError, "sql_folder", "SQL folder does not exist: %v", err)
	}

	switch c.StorageKind() {
	case "mssql", "postgres":
		if c.DSN == "" {
			if strings.TrimSpace(c.Server) == "" {
				add(SeverityError, "server", "server must be set when no DSN is given")
			}
			if strings.TrimSpace(c.Database) == "" {
				add(SeverityError, "database", "database must be set when no DSN is given")
			}
			if c.StorageKind() == "mssql" && !c.TrustedConnection && (c.DBUser == "" || c.DBPassword == "") {
				add(SeverityError, "db_user", "DB_USER and DB_PASSWORD must be set when SQL_TRUSTED_CONNECTION=no")
			}
		}
	case "sqlite":
		if c.DSN == "" && c.Database == "" {
			add(SeverityError, "database", "sqlite needs a database file path or DSN")
		}
	default:
		add(SeverityError, "db_driver", "unknown db_driver %q; want mssql, postgres or sqlite", c.DBDriver)
	}

	if strings.TrimSpace(c.StagingTable) == "" {
		add(SeverityError, "staging_table", "staging_table must not be empty")
	}
	if strings.TrimSpace(c.FactTable) == "" {
		add(SeverityError, "fact_table", "fact_table must not be empty; it is counted after the load")
	}

	if c.BatchSize <= 0 {
		add(SeverityError, "batch_size", "batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.CommitEvery <= 0 {
		add(SeverityError, "commit_every", "commit_every must be > 0 (got %d)", c.CommitEvery)
	}
	if c.MaxBadRows <= 0 {
		add(SeverityError, "max_bad_rows", "max_bad_rows must be > 0 (got %d)", c.MaxBadRows)
	}

	if sqlOK {
		for _, n := range c.Plan().Missing(c.SQLFolder) {
			add(SeverityError, "sql_folder", "script %s not found in %s", n, c.SQLFolder)
		}
	}
	if len(c.PreScripts) == 0 && len(c.PostScripts) == 0 {
		add(SeverityWarning, "pre_scripts", "no scripts configured; only the staging load will run")
	}
	if c.SkippedDir == "" {
		add(SeverityWarning, "skipped_dir", "skipped_dir is empty; bad rows will only be logged")
	}

	switch c.MetricsBackend {
	case "", "none":
	case "pushgateway":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway_url", "pushgateway backend requires a URL")
		}
	case "datadog":
		if c.DogStatsDAddr == "" {
			add(SeverityError, "dogstatsd_addr", "datadog backend requires an address")
		}
	default:
		add(SeverityWarning, "metrics_backend", "unknown metrics backend %q; metrics disabled", c.MetricsBackend)
	}
	if c.MetricsBackend != "" && c.MetricsBackend != "none" && strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will use the backend default")
	}

	return issues
}

func dirExists(p string) error {
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", p)
	}
	return nil
}
