// Package handler wires configuration, intake, submission, polling and
// presentation into the user-facing workflow.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/legacy-guard/guard-client/pkg/config"
	"github.com/legacy-guard/guard-client/pkg/datamodel"
	"github.com/legacy-guard/guard-client/pkg/filesystem"
	"github.com/legacy-guard/guard-client/pkg/guard"
	"github.com/legacy-guard/guard-client/pkg/history"
	"github.com/legacy-guard/guard-client/pkg/intake"
	"github.com/legacy-guard/guard-client/pkg/monitor"
	"github.com/legacy-guard/guard-client/pkg/poller"
	"github.com/legacy-guard/guard-client/pkg/presenter"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

// ConsoleLogger carries the one user-visible line per submission
// outcome. Discarded by default, the CLI points it at stderr.
var ConsoleLogger = slog.New(slog.DiscardHandler)

type Handler struct {
	submitter guard.Submitter
	validator *intake.Validator
	ledger    history.Recorder
	present   *presenter.Presenter
	monitor   monitor.Monitorer

	stopped bool
	conf    *config.Config
}

func NewHandler(ctx context.Context, conf *config.Config) (h *Handler, err error) {
	h = &Handler{stopped: true}
	err = h.setup(ctx, conf)
	return
}

func (h *Handler) setup(_ context.Context, conf *config.Config) (err error) {
	if conf.Guard.URL == "" {
		conf.Guard.URL = config.DefaultGuardURL
	}
	if conf.Guard.Timeout == 0 {
		conf.Guard.Timeout = config.DefaultTimeout
	}
	if conf.Guard.PollInterval == 0 {
		conf.Guard.PollInterval = config.DefaultPollInterval
	}
	if conf.Guard.PollRetries == 0 {
		conf.Guard.PollRetries = config.DefaultPollRetries
	}
	if conf.Monitoring.ModificationDelay == 0 {
		conf.Monitoring.ModificationDelay = config.DefaultModDelay
	}
	if !datamodel.ValidLanguage(conf.Language) {
		err = fmt.Errorf("unknown language %q, known languages are %v", conf.Language, datamodel.Languages)
		return
	}

	if conf.Debug {
		LogLevel.Set(slog.LevelDebug)
		guard.LogLevel.Set(slog.LevelDebug)
		intake.LogLevel.Set(slog.LevelDebug)
		poller.LogLevel.Set(slog.LevelDebug)
		logger.Debug("log level set to debug")
	} else {
		LogLevel.Set(slog.LevelInfo)
		guard.LogLevel.Set(slog.LevelInfo)
		intake.LogLevel.Set(slog.LevelInfo)
		poller.LogLevel.Set(slog.LevelInfo)
	}

	if h.submitter == nil {
		client, clientErr := guard.NewClientFromConfig(guard.ClientConfig{
			Endpoint:    conf.Guard.URL,
			Timeout:     conf.Guard.Timeout,
			PollRetries: conf.Guard.PollRetries,
			Insecure:    conf.Guard.Insecure,
		})
		if clientErr != nil {
			err = fmt.Errorf("init guard client error: %w", clientErr)
			return
		}
		h.submitter = client
	}

	h.validator, err = intake.NewValidator(conf.MaxArchiveSize)
	if err != nil {
		return
	}

	if h.ledger == nil {
		h.ledger, err = history.NewHistory(conf.History.Location)
		if err != nil {
			err = fmt.Errorf("could not open submission history: %w", err)
			return
		}
	}

	h.present = presenter.New(os.Stdout, conf.Report.Verbose)
	h.conf = conf
	return
}

// resolveTarget turns a submission target (archive file, source
// directory, git URL or s3:// URI) into a ready-to-read archive. The
// returned cleanup removes any temporary archive built on the way.
func (h *Handler) resolveTarget(ctx context.Context, target string) (reader io.ReadCloser, filename string, cleanup func(), err error) {
	cleanup = func() {}

	if intake.IsRepositoryURL(target) {
		archive, fetchErr := intake.FetchRepository(ctx, target, h.conf.Branch)
		if fetchErr != nil {
			err = fetchErr
			return
		}
		return h.openLocalArchive(ctx, archive, removeArchive(archive))
	}

	fsys, fsPath, err := filesystem.ForTarget(ctx, target, filesystem.S3Config{
		Endpoint:        h.conf.S3.Endpoint,
		Region:          h.conf.S3.Region,
		AccessKeyID:     h.conf.S3.AccessKeyID,
		SecretAccessKey: h.conf.S3.SecretAccessKey,
		Insecure:        h.conf.S3.Insecure,
		UsePathStyle:    h.conf.S3.UsePathStyle,
	})
	if err != nil {
		return
	}

	if !fsys.IsLocal() {
		if !intake.Accepted(fsPath) {
			err = intake.ErrNotAccepted
			return
		}
		info, statErr := fsys.Stat(ctx, fsPath)
		if statErr != nil {
			err = statErr
			return
		}
		if err = h.validator.CheckSize(info.Size()); err != nil {
			return
		}
		reader, err = fsys.Open(ctx, fsPath)
		filename = path.Base(fsPath)
		return
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		return
	}
	if info.IsDir() {
		archive, packErr := intake.PackDir(fsPath)
		if packErr != nil {
			err = packErr
			return
		}
		return h.openLocalArchive(ctx, archive, removeArchive(archive))
	}
	return h.openLocalArchive(ctx, fsPath, func() {})
}

func (h *Handler) openLocalArchive(_ context.Context, archive string, cleanup func()) (io.ReadCloser, string, func(), error) {
	selected, err := h.validator.Select(archive)
	if err != nil {
		cleanup()
		return nil, "", func() {}, err
	}
	f, err := os.Open(selected)
	if err != nil {
		cleanup()
		return nil, "", func() {}, err
	}
	return f, path.Base(selected), cleanup, nil
}

func removeArchive(archive string) func() {
	return func() {
		if e := os.Remove(archive); e != nil {
			logger.Warn("could not remove temporary archive", slog.String("archive", archive), slog.String("error", e.Error()))
		}
	}
}

// SubmitTarget validates and submits one target and returns the new job
// id. Exactly one console line is emitted per outcome: a success line
// with the job id, or a failure line.
func (h *Handler) SubmitTarget(ctx context.Context, target string) (projectID string, err error) {
	reader, filename, cleanup, err := h.resolveTarget(ctx, target)
	if err != nil {
		ConsoleLogger.Error("submission failed", slog.String("target", target), slog.String("error", err.Error()))
		return
	}
	defer cleanup()
	defer func() {
		if e := reader.Close(); e != nil {
			logger.Warn("could not close archive", slog.String("archive", filename), slog.String("error", e.Error()))
		}
	}()

	projectID, err = h.submitter.SubmitProject(ctx, reader, filename, h.conf.ProjectName, h.conf.Language)
	if err != nil {
		ConsoleLogger.Error("submission failed", slog.String("target", target), slog.String("error", err.Error()))
		return
	}
	ConsoleLogger.Info("analysis job created", slog.String("project-id", projectID), slog.String("target", target))

	if e := h.ledger.Set(&history.Entry{
		ProjectID:   projectID,
		ProjectName: h.conf.ProjectName,
		Language:    h.conf.Language,
		Archive:     target,
		Status:      datamodel.StatusQueued,
	}); e != nil {
		logger.Warn("could not record submission", slog.String("project-id", projectID), slog.String("error", e.Error()))
	}
	return
}

// Follow polls the job until it settles, rendering progress along the
// way and the findings at the end. The last snapshot is recorded in the
// submission history and exported when a report location is configured.
func (h *Handler) Follow(ctx context.Context, projectID string) (last *datamodel.Analysis, err error) {
	p := poller.New(h.submitter, h.conf.Guard.PollInterval, func(snapshot *datamodel.Analysis) {
		if e := h.present.Progress(snapshot); e != nil {
			logger.Warn("could not render progress", slog.String("error", e.Error()))
		}
	})
	last, err = p.Track(ctx, projectID)
	if err != nil {
		return
	}
	if e := h.present.Findings(last); e != nil {
		logger.Warn("could not render findings", slog.String("error", e.Error()))
	}
	if last.Status == datamodel.StatusFailed && last.ErrorMessage != "" {
		err = fmt.Errorf("analysis failed: %s", last.ErrorMessage)
	}

	if e := h.recordOutcome(last); e != nil {
		logger.Warn("could not record analysis outcome", slog.String("project-id", projectID), slog.String("error", e.Error()))
	}
	if e := h.exportReport(last); e != nil {
		logger.Warn("could not export report", slog.String("project-id", projectID), slog.String("error", e.Error()))
	}
	return
}

func (h *Handler) recordOutcome(last *datamodel.Analysis) (err error) {
	entry, err := h.ledger.Get(last.ProjectID)
	if errors.Is(err, history.ErrEntryNotFound) {
		entry = &history.Entry{ProjectID: last.ProjectID, Language: h.conf.Language}
		err = nil
	}
	if err != nil {
		return
	}
	entry.ProjectName = last.ProjectName
	entry.Status = last.Status
	entry.VulnerabilitiesFound = last.VulnerabilitiesFound
	entry.UpdatedAt = time.Now()
	return h.ledger.Set(entry)
}

func (h *Handler) exportReport(last *datamodel.Analysis) (err error) {
	if h.conf.Report.Location == "" {
		return
	}
	dst, err := os.OpenFile(h.conf.Report.Location, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return
	}
	defer dst.Close()
	report := datamodel.NewReport("", h.conf.Language, last)
	return datamodel.NewReportsWriter(dst).Write(report)
}

// Fetch renders one snapshot of a job without entering the poll cycle.
func (h *Handler) Fetch(ctx context.Context, projectID string) (last *datamodel.Analysis, err error) {
	last, err = h.submitter.GetAnalysis(ctx, projectID)
	if err != nil {
		return
	}
	if e := h.present.Render(last); e != nil {
		logger.Warn("could not render snapshot", slog.String("error", e.Error()))
	}
	if e := h.recordOutcome(last); e != nil {
		logger.Warn("could not record analysis outcome", slog.String("project-id", projectID), slog.String("error", e.Error()))
	}
	return
}

// SubmitAndFollow is the whole workflow for one target.
func (h *Handler) SubmitAndFollow(ctx context.Context, target string) (last *datamodel.Analysis, err error) {
	projectID, err := h.SubmitTarget(ctx, target)
	if err != nil {
		return
	}
	return h.Follow(ctx, projectID)
}

// Start begins watching the configured drop folders. Each settled
// archive goes through the full submit-and-follow workflow.
func (h *Handler) Start(ctx context.Context) (err error) {
	mon, err := monitor.NewMonitor(
		h.onArchive(ctx),
		h.conf.Monitoring.PreScan,
		h.conf.Monitoring.Period,
		h.conf.Monitoring.ModificationDelay,
	)
	if err != nil {
		return
	}
	h.monitor = mon
	h.monitor.Start()
	for _, folder := range h.conf.Paths {
		if err = h.monitor.Add(folder); err != nil {
			err = fmt.Errorf("could not watch folder %s: %w", folder, err)
			h.monitor.Close()
			h.monitor = nil
			return
		}
	}
	h.stopped = false
	logger.Info("watch started", slog.Any("paths", h.conf.Paths))
	return
}

func (h *Handler) onArchive(ctx context.Context) monitor.SubmitFunc {
	return func(archive string) error {
		_, err := h.SubmitAndFollow(ctx, archive)
		return err
	}
}

func (h *Handler) Stop(_ context.Context) (err error) {
	if h.stopped {
		return
	}
	h.stopped = true
	if h.monitor != nil {
		h.monitor.Close()
		h.monitor = nil
	}
	if h.ledger != nil {
		if e := h.ledger.Close(); e != nil {
			logger.Warn("could not close submission history", slog.String("error", e.Error()))
		}
		h.ledger = nil
	}
	logger.Info("watch stopped")
	return
}

// History returns the submission ledger entries, most recent first.
func (h *Handler) History() ([]*history.Entry, error) {
	return h.ledger.List()
}

// ExportHistory writes every recorded submission as one JSON export
// envelope covering the whole session span.
func (h *Handler) ExportHistory(dst io.Writer) (err error) {
	entries, err := h.ledger.List()
	if err != nil {
		return
	}
	sctx := datamodel.SubmissionContext{GeneratedAt: time.Now()}
	reports := make([]datamodel.Report, 0, len(entries))
	for _, entry := range entries {
		if sctx.Start.IsZero() || entry.SubmittedAt.Before(sctx.Start) {
			sctx.Start = entry.SubmittedAt
		}
		if entry.SubmittedAt.After(sctx.End) {
			sctx.End = entry.SubmittedAt
		}
		reports = append(reports, datamodel.Report{
			ProjectID:            entry.ProjectID,
			ProjectName:          entry.ProjectName,
			Language:             entry.Language,
			Archive:              entry.Archive,
			Status:               entry.Status,
			VulnerabilitiesFound: entry.VulnerabilitiesFound,
		})
	}
	r, err := datamodel.GenerateReport(sctx, reports)
	if err != nil {
		return
	}
	_, err = io.Copy(dst, r)
	return
}
