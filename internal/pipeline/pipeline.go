// Package pipeline orchestrates ingestion: parse, normalize, canonicalize,
// validate, deduplicate, enrich, and persist one upload batch.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cdr-insight/internal/canonical"
	"github.com/sells-group/cdr-insight/internal/config"
	"github.com/sells-group/cdr-insight/internal/dedupe"
	"github.com/sells-group/cdr-insight/internal/enrich"
	"github.com/sells-group/cdr-insight/internal/model"
	"github.com/sells-group/cdr-insight/internal/normalize"
	"github.com/sells-group/cdr-insight/internal/store"
	"github.com/sells-group/cdr-insight/internal/tabular"
	"github.com/sells-group/cdr-insight/internal/validate"
)

// File is one raw input buffer.
type File struct {
	Name string
	Data []byte
}

// Pipeline wires the ingestion stages around a store.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	normalizer *normalize.Normalizer
	canon      *canonical.Canonicalizer
	tabOpts    tabular.Options
}

// New builds a Pipeline. The reference timezone must resolve.
func New(cfg *config.Config, st store.Store) (*Pipeline, error) {
	canon, err := canonical.New(cfg.Pipeline.Timezone)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		normalizer: normalize.New(normalize.DefaultTables()),
		canon:      canon,
		tabOpts:    tabular.DefaultOptions(),
	}, nil
}

// fileResult is one file's contribution to the batch.
type fileResult struct {
	report model.FileReport
	events []*model.CanonicalEvent
	errs   []model.RowError
}

// Run ingests one batch. Files are processed concurrently; deduplication and
// enrichment run over the combined batch because duplicates and contact
// history can span files. All valid events are persisted, flagged duplicates
// included, so downstream queries can audit them.
func (p *Pipeline) Run(ctx context.Context, uploadID, label string, files []File) (*model.UploadSummary, error) {
	if len(files) == 0 {
		return nil, eris.New("pipeline: no files to ingest")
	}

	if _, err := p.store.CreateUpload(ctx, uploadID, label, len(files)); err != nil {
		return nil, err
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.FileConcurrency)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processFile(uploadID, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest files")
	}

	summary := &model.UploadSummary{UploadID: uploadID}
	var batch []*model.CanonicalEvent
	for _, res := range results {
		summary.Files = append(summary.Files, res.report)
		summary.TotalProcessed += res.report.TotalRows
		summary.Invalid += res.report.Skipped
		summary.Errors = append(summary.Errors, res.errs...)
		batch = append(batch, res.events...)
	}
	if max := p.cfg.Pipeline.MaxErrorSamples; max > 0 && len(summary.Errors) > max {
		summary.Errors = summary.Errors[:max]
	}

	dedupeCfg := dedupe.Config{
		TimestampTolerance: time.Duration(p.cfg.Dedupe.TimestampToleranceSecs) * time.Second,
		DurationTolerance:  time.Duration(p.cfg.Dedupe.DurationToleranceSecs) * time.Second,
		AdvisoryWindow:     time.Duration(p.cfg.Dedupe.AdvisoryWindowSecs) * time.Second,
	}
	summary.Duplicates = dedupe.Mark(batch, dedupeCfg)

	survivors := dedupe.Survivors(batch)
	if near := dedupe.NearDuplicates(survivors, dedupeCfg.AdvisoryWindow); len(near) > 0 {
		zap.L().Info("near-duplicate events within advisory window",
			zap.String("upload_id", uploadID),
			zap.Int("count", len(near)),
		)
	}

	enrich.Apply(survivors, enrich.Config{
		BurstGap:         time.Duration(p.cfg.Enrich.BurstGapMinutes) * time.Minute,
		BaselineFraction: p.cfg.Enrich.BaselineFraction,
	})

	inserted, insertErr := p.insertChunked(ctx, batch)
	summary.Inserted = inserted
	applyInsertShortfall(summary, len(batch)-inserted)

	if err := p.store.UpdateUploadCounts(ctx, uploadID, summary.Inserted, summary.Invalid, summary.Duplicates); err != nil {
		return summary, err
	}

	zap.L().Info("upload ingested",
		zap.String("upload_id", uploadID),
		zap.Int("files", len(files)),
		zap.Int("processed", summary.TotalProcessed),
		zap.Int("inserted", summary.Inserted),
		zap.Int("invalid", summary.Invalid),
		zap.Int("duplicates", summary.Duplicates),
	)
	return summary, insertErr
}

// processFile parses one buffer and runs the per-row stages. Parse and header
// failures become file-level error samples rather than hard failures: one bad
// file must not sink the batch.
func (p *Pipeline) processFile(uploadID string, f File) fileResult {
	res := fileResult{report: model.FileReport{FileName: f.Name}}
	now := time.Now().UTC()

	tables, err := tabular.Parse(f.Data, f.Name, p.tabOpts)
	if err != nil {
		res.errs = append(res.errs, model.RowError{FileName: f.Name, Reason: err.Error()})
		return res
	}

	for _, table := range tables {
		mapper := p.normalizer.MapHeader(table.Header)
		if !mapper.HasTimestamp() {
			res.errs = append(res.errs, model.RowError{
				FileName:  f.Name,
				RowNumber: table.FirstDataRow - 1,
				Reason:    "no timestamp column recognized in header",
			})
			continue
		}

		for i, cells := range table.Rows {
			// Blank placeholder rows keep numbering aligned with the source
			// sheet; they carry no data and are not counted.
			if blankRow(cells) {
				continue
			}
			res.report.TotalRows++
			rowNum := table.FirstDataRow + i
			src := model.Source{File: f.Name, Sheet: table.Sheet, Row: rowNum}

			rec, err := mapper.Record(cells, src, table.CoercedRows[i])
			if err != nil {
				res.report.Skipped++
				res.errs = append(res.errs, model.RowError{FileName: f.Name, RowNumber: rowNum, Reason: err.Error()})
				continue
			}

			ev, err := p.canon.Event(rec, uploadID)
			if err != nil {
				res.report.Skipped++
				res.errs = append(res.errs, model.RowError{FileName: f.Name, RowNumber: rowNum, Reason: err.Error()})
				continue
			}

			if v := validate.Apply(ev, now); !v.Valid {
				res.report.Skipped++
				res.errs = append(res.errs, model.RowError{FileName: f.Name, RowNumber: rowNum, Reason: v.Reason})
				continue
			}

			res.report.WarningsCount += len(ev.NormalizationWarnings)
			res.events = append(res.events, ev)
		}
	}

	res.report.Inserted = len(res.events)
	return res
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// insertChunked writes the batch in fixed-size chunks. A failed chunk is
// reported but later chunks still run, so one bad chunk costs at most
// chunk-size records.
func (p *Pipeline) insertChunked(ctx context.Context, events []*model.CanonicalEvent) (int, error) {
	chunkSize := p.cfg.Pipeline.InsertChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}

	inserted := 0
	var firstErr error
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}
		n, err := p.store.InsertEvents(ctx, events[start:end])
		inserted += n
		if err != nil {
			zap.L().Error("insert chunk failed",
				zap.Int("chunk_start", start),
				zap.Int("chunk_size", end-start),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return inserted, firstErr
}

// applyInsertShortfall charges records lost to failed chunks against the
// per-file inserted counts, front to back, so file reports stay consistent
// with the batch total.
func applyInsertShortfall(summary *model.UploadSummary, shortfall int) {
	for i := range summary.Files {
		if shortfall <= 0 {
			return
		}
		take := summary.Files[i].Inserted
		if take > shortfall {
			take = shortfall
		}
		summary.Files[i].Inserted -= take
		shortfall -= take
	}
}
