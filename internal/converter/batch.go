package converter

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
	"github.com/ginjaninja78/gobd-datev-export/pkg/utils"
)

// ErrSkipped marks files not started because an earlier file failed with
// StopOnError set, or because the batch was cancelled.
var ErrSkipped = errors.New("skipped")

// Job is one file of a batch together with the converter and DATEV header
// values it runs with.
type Job struct {
	Path      string
	Converter *Converter
	Metadata  types.ExportMetadata

	// Err is reported as the file's result without running it, e.g. when no
	// converter could be built for the file's client profile.
	Err error
}

func (j Job) run() Result {
	if j.Err != nil {
		return Result{FilePath: j.Path, Error: j.Err}
	}
	return j.Converter.Run(j.Path, j.Metadata)
}

// BatchOptions controls RunBatch.
type BatchOptions struct {
	// Concurrency is the number of files processed at once. Values below 1
	// mean 1.
	Concurrency int

	// StopOnError skips files not yet started after the first failure.
	StopOnError bool
}

// RunBatch processes jobs concurrently and returns one result per job, in
// job order. Cancelling ctx skips the files not yet started; files already
// running finish.
func RunBatch(ctx context.Context, jobs []Job, opts BatchOptions) []Result {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(jobs))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, job := range jobs {
		sem <- struct{}{}
		if ctx.Err() != nil {
			<-sem
			results[i] = Result{FilePath: job.Path, Error: ErrSkipped}
			continue
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()

			res := job.run()
			results[i] = res
			if res.Error != nil && opts.StopOnError {
				cancel()
			}
		}(i, job)
	}

	wg.Wait()
	return results
}

// Summarize aggregates batch results for the summary log.
func Summarize(results []Result, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
	}

	for _, r := range results {
		summary.TotalRows += r.Stats.RowsRead
		summary.ValidRows += r.Stats.ValidRows
		summary.Transactions += r.Stats.Transactions
		summary.RowErrors += r.Stats.RowErrors
		summary.Violations += r.Stats.Violations

		if r.Error != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    filepath.Base(r.FilePath),
				ErrorMessage: r.Error.Error(),
				ErrorLog:     r.ErrorLog,
			})
			continue
		}

		if r.Exported {
			summary.SuccessfulFiles++
		} else {
			summary.WithheldFiles++
		}

		info := utils.ProcessedFileInfo{
			InputFile:    filepath.Base(r.FilePath),
			OutputFile:   r.OutputFile,
			ArchivePath:  r.ArchivePath,
			Rows:         r.Stats.RowsRead,
			Transactions: r.Stats.Transactions,
			ProcessTime:  r.Stats.ProcessingTime,
		}
		if r.Validation != nil {
			info.Period = r.Validation.Summary.Period
		}
		summary.ProcessedFiles = append(summary.ProcessedFiles, info)
	}

	return summary
}
