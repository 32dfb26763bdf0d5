// Package pipeline runs one full load: pre scripts, CSV ingest, cleaning,
// the staging load, post scripts and the closing row counts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"retailetl/internal/clean"
	"retailetl/internal/config"
	"retailetl/internal/ingest"
	"retailetl/internal/metrics"
	"retailetl/internal/schema"
	"retailetl/internal/scripts"
	"retailetl/internal/skiplog"
	"retailetl/internal/stage"
	"retailetl/internal/storage"
)

// Step names used for logs and metrics.
const (
	StepPreScripts  = "pre_scripts"
	StepIngest      = "ingest"
	StepClean       = "clean"
	StepStage       = "stage"
	StepPostScripts = "post_scripts"
	StepValidate    = "validate"
)

// Result summarises a run. Fields are filled as far as the run got.
type Result struct {
	Files        []ingest.FileSummary
	Rows         int
	Inserted     int64
	NullDates    int
	StagingCount int64
	FactCount    int64
	SkipLog      string // path of the bad-row log, if one was written
}

// Run executes the pipeline against db. rec may be nil.
func Run(ctx context.Context, cfg *config.Config, db storage.DB, rec *metrics.Recorder) (*Result, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("pipeline: config and db are required")
	}
	var (
		res      = &Result{}
		contract = schema.SalesRaw()
		plan     = cfg.Plan()
		started  = time.Now()
		data     *ingest.Dataset
		rows     []clean.Row
	)

	step := func(name string, fn func() error) error {
		t0 := time.Now()
		err := fn()
		d := time.Since(t0)
		rec.RecordStep(name, err, d)
		if err != nil {
			log.Printf("pipeline: step=%s failed after=%s err=%v", name, d.Truncate(time.Millisecond), err)
			return err
		}
		log.Printf("pipeline: step=%s ok elapsed=%s", name, d.Truncate(time.Millisecond))
		return nil
	}

	if err := step(StepPreScripts, func() error {
		return scripts.RunAll(ctx, db, cfg.SQLFolder, plan.Pre)
	}); err != nil {
		return res, err
	}

	if err := step(StepIngest, func() error {
		var err error
		data, err = ingest.Load(ctx, cfg.CSVFolder, contract)
		return err
	}); err != nil {
		return res, err
	}
	res.Files = data.Files
	res.Rows = len(data.Records)
	rec.RecordRow(metrics.KindRead, int64(res.Rows))

	step(StepClean, func() error {
		rows = clean.Records(clean.SalesSpec(contract), data.Records)
		res.NullDates = countNullDates(rows, contract)
		return nil
	})
	rec.RecordRow(metrics.KindNullDate, int64(res.NullDates))
	if res.NullDates > 0 {
		log.Printf("pipeline: unparsed or empty dates loaded as NULL count=%d", res.NullDates)
	}

	if err := step(StepStage, func() error {
		l := stage.Loader{
			DB:          db,
			Table:       cfg.StagingTable,
			Contract:    contract,
			ChunkSize:   cfg.BatchSize,
			CommitEvery: cfg.CommitEvery,
			MaxBadRows:  cfg.MaxBadRows,
			Metrics:     rec,
		}
		var err error
		res.Inserted, err = l.Load(ctx, rows)
		return err
	}); err != nil {
		var rie *stage.RowIsolationError
		if errors.As(err, &rie) && cfg.SkippedDir != "" {
			p := filepath.Join(cfg.SkippedDir, skiplog.FileName(started))
			if werr := skiplog.WriteReport(p, rie.Report); werr != nil {
				log.Printf("pipeline: writing bad rows failed path=%s err=%v", p, werr)
			} else {
				res.SkipLog = p
				log.Printf("pipeline: bad rows written path=%s rows=%d", p, len(rie.Report.Rows))
			}
		}
		return res, err
	}

	if err := step(StepPostScripts, func() error {
		return scripts.RunAll(ctx, db, cfg.SQLFolder, plan.Post)
	}); err != nil {
		return res, err
	}

	if err := step(StepValidate, func() error {
		var err error
		if res.StagingCount, err = count(ctx, db, cfg.StagingTable); err != nil {
			return err
		}
		res.FactCount, err = count(ctx, db, cfg.FactTable)
		return err
	}); err != nil {
		return res, err
	}
	log.Printf("pipeline: validation staging_table=%s rows=%d fact_table=%s rows=%d",
		cfg.StagingTable, res.StagingCount, cfg.FactTable, res.FactCount)
	log.Printf("pipeline: completed in %s", time.Since(started).Truncate(time.Millisecond))
	return res, nil
}

func count(ctx context.Context, db storage.DB, table string) (int64, error) {
	q := "SELECT COUNT(1) FROM " + db.Dialect().QuoteName(table)
	n, err := db.QueryInt(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("pipeline: validation: count %s: %w", table, err)
	}
	return n, nil
}

func countNullDates(rows []clean.Row, c schema.Contract) int {
	idx := c.Indexes(schema.DateColumns)
	n := 0
	for _, r := range rows {
		for _, i := range idx {
			if d, ok := r.Values[i].(clean.Date); ok && !d.Valid {
				n++
			}
		}
	}
	return n
}
