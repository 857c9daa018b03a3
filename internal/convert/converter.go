// Package convert runs the staged PDF-to-spreadsheet pipeline for one upload:
// validate, extract, structure, generate, record. Cancellation is checked
// between stages so a cancel request takes effect at the next checkpoint.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/statement-ai/converter/internal/extract"
	"github.com/statement-ai/converter/internal/filestore"
	"github.com/statement-ai/converter/internal/history"
	"github.com/statement-ai/converter/internal/observability"
	"github.com/statement-ai/converter/internal/progress"
	"github.com/statement-ai/converter/internal/statement"
	"github.com/statement-ai/converter/internal/task"
)

// TextExtractor pulls plain text from a PDF on disk.
type TextExtractor interface {
	Text(path string) (string, error)
}

// AIStructurer turns raw statement text into a transaction table using a
// hosted model.
type AIStructurer interface {
	ExtractTransactions(ctx context.Context, text string) (statement.TableData, error)
}

// SpreadsheetWriter renders a table to an XLSX file.
type SpreadsheetWriter interface {
	Generate(table statement.TableData, path string) error
}

// Job is one accepted upload ready for conversion.
type Job struct {
	FileID       string
	SessionID    string
	OriginalName string
	UseAI        bool
	Data         []byte
}

// Converter orchestrates conversions across the registry, progress hub,
// history store and file store.
type Converter struct {
	logger    *observability.Logger
	registry  *task.Manager
	hub       *progress.Hub
	history   *history.Store
	files     *filestore.Store
	validator *extract.Validator
	extractor TextExtractor
	ai        AIStructurer
	writer    SpreadsheetWriter
}

// NewConverter wires the pipeline. ai may be nil, in which case every job
// falls back to the local structurer.
func NewConverter(
	logger *observability.Logger,
	registry *task.Manager,
	hub *progress.Hub,
	hist *history.Store,
	files *filestore.Store,
	validator *extract.Validator,
	extractor TextExtractor,
	ai AIStructurer,
	writer SpreadsheetWriter,
) *Converter {
	return &Converter{
		logger:    logger,
		registry:  registry,
		hub:       hub,
		history:   hist,
		files:     files,
		validator: validator,
		extractor: extractor,
		ai:        ai,
		writer:    writer,
	}
}

// Start records the job in history and launches the conversion in the
// background. It returns the processing type that will be used.
func (c *Converter) Start(job Job) string {
	processingType := statement.ProcessingBasic
	if job.UseAI && c.ai != nil {
		processingType = statement.ProcessingAI
	}

	c.history.Add(job.SessionID, history.Item{
		FileID:         job.FileID,
		OriginalName:   job.OriginalName,
		Status:         "processing",
		ProcessingType: processingType,
	})

	c.registry.Start(job.FileID, func(ctx context.Context) error {
		return c.run(ctx, job, processingType)
	})

	return processingType
}

// run executes the pipeline stages for one job. The registry entry is always
// cleaned up on exit; the temp upload never outlives the conversion.
func (c *Converter) run(ctx context.Context, job Job, processingType string) error {
	log := c.logger.WithFile(job.FileID)
	defer c.registry.Cleanup(job.FileID)

	var tempPath string
	defer func() {
		if tempPath != "" {
			if err := c.files.Remove(tempPath); err != nil {
				log.Warn().Err(err).Msg("Failed to remove temp upload")
			}
		}
	}()

	cancelled := func() bool {
		return c.registry.IsCancelled(job.FileID) || ctx.Err() != nil
	}

	// Stage 1: validate the upload.
	c.hub.BroadcastStatus(job.FileID, progress.StatusValidating, 5, "Validating PDF file", nil)
	if err := c.validator.Validate(job.Data); err != nil {
		return c.fail(log, job, fmt.Errorf("validation failed: %w", err))
	}

	path, err := c.files.SaveTemp(job.FileID, job.Data)
	if err != nil {
		return c.fail(log, job, err)
	}
	tempPath = path

	if cancelled() {
		return c.cancelledExit(log, job)
	}

	// Stage 2: extract text.
	c.hub.BroadcastStatus(job.FileID, progress.StatusExtracting, 20, "Extracting text from PDF", nil)
	text, err := c.extractor.Text(tempPath)
	if err != nil {
		return c.fail(log, job, fmt.Errorf("text extraction failed: %w", err))
	}

	if cancelled() {
		return c.cancelledExit(log, job)
	}

	// Stage 3: structure the text.
	var table statement.TableData
	if processingType == statement.ProcessingAI {
		c.hub.BroadcastStatus(job.FileID, progress.StatusProcessing, 40, "Analyzing statement with AI", nil)
		table, err = c.ai.ExtractTransactions(ctx, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return c.cancelledExit(log, job)
			}
			return c.fail(log, job, fmt.Errorf("ai extraction failed: %w", err))
		}
		c.hub.BroadcastStatus(job.FileID, progress.StatusProcessing, 70, "AI analysis complete", nil)
	} else {
		c.hub.BroadcastStatus(job.FileID, progress.StatusProcessing, 50, "Parsing transactions", nil)
		table = statement.ParseTable(text)
	}

	if table.IsEmpty() {
		return c.fail(log, job, errors.New("no transactions found in statement"))
	}

	if cancelled() {
		return c.cancelledExit(log, job)
	}

	// Stage 4: generate the spreadsheet.
	c.hub.BroadcastStatus(job.FileID, progress.StatusGenerating, 85, "Generating Excel file", nil)
	artifactPath := c.files.GeneratedPath(job.FileID)
	if err := c.writer.Generate(table, artifactPath); err != nil {
		return c.fail(log, job, fmt.Errorf("spreadsheet generation failed: %w", err))
	}
	c.files.Register(job.FileID, artifactPath)

	var fileSize int64
	if stat, err := os.Stat(artifactPath); err == nil {
		fileSize = stat.Size()
	} else {
		log.Warn().Err(err).Msg("Could not stat generated artifact")
	}

	if cancelled() {
		// Drop the artifact of a conversion nobody wants anymore.
		c.files.Delete(job.FileID)
		return c.cancelledExit(log, job)
	}

	// Stage 5: record completion.
	convertedName := ConvertedFilename(job.OriginalName)
	if err := c.history.Update(job.SessionID, job.FileID, func(item *history.Item) {
		item.Status = "completed"
		item.ConvertedName = convertedName
		item.ArtifactPath = artifactPath
		item.FileSize = fileSize
		item.RowCount = table.RowCount()
		item.Preview = table.Records()
	}); err != nil {
		log.Warn().Err(err).Msg("Could not record completion in history")
	}

	c.hub.BroadcastStatus(job.FileID, progress.StatusCompleted, 100, "Conversion completed", map[string]any{
		"download_url":       "/api/download/" + job.FileID,
		"converted_filename": convertedName,
		"file_size":          fileSize,
		"row_count":          table.RowCount(),
	})

	log.Info().Str("processing_type", processingType).Int("rows", table.RowCount()).Msg("Conversion completed")
	return nil
}

// fail records a terminal failure in history, broadcasts it, and returns the
// error so the registry classifies the task as failed.
func (c *Converter) fail(log *observability.Logger, job Job, err error) error {
	if herr := c.history.Update(job.SessionID, job.FileID, func(item *history.Item) {
		item.Status = "failed"
		item.Error = err.Error()
	}); herr != nil {
		log.Warn().Err(herr).Msg("Could not record failure in history")
	}

	c.hub.BroadcastStatus(job.FileID, progress.StatusFailed, 0, err.Error(), nil)
	log.Error().Err(err).Msg("Conversion failed")
	return err
}

// cancelledExit records the cancellation and returns context.Canceled so the
// registry classifies the task as cancelled.
func (c *Converter) cancelledExit(log *observability.Logger, job Job) error {
	if err := c.history.Update(job.SessionID, job.FileID, func(item *history.Item) {
		item.Status = "cancelled"
	}); err != nil {
		log.Warn().Err(err).Msg("Could not record cancellation in history")
	}

	c.hub.BroadcastStatus(job.FileID, progress.StatusCancelled, 0, "Conversion cancelled", nil)
	log.Info().Msg("Conversion cancelled")
	return context.Canceled
}

// ConvertedFilename derives the download name for a converted statement.
func ConvertedFilename(originalName string) string {
	stem := originalName
	if strings.HasSuffix(strings.ToLower(stem), ".pdf") {
		stem = stem[:len(stem)-len(".pdf")]
	}
	if stem == "" {
		stem = "document"
	}
	return stem + "_converted.xlsx"
}
