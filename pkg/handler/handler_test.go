package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/legacy-guard/guard-client/pkg/config"
	"github.com/legacy-guard/guard-client/pkg/datamodel"
	"github.com/legacy-guard/guard-client/pkg/history"
	"github.com/legacy-guard/guard-client/pkg/presenter"
)

type fakeSubmitter struct {
	filename    string
	projectName string
	language    string
	archiveSize int

	projectID string
	submitErr error

	snapshots  []*datamodel.Analysis
	fetchCalls int
}

func (f *fakeSubmitter) SubmitProject(ctx context.Context, archive io.Reader, filename, projectName, language string) (string, error) {
	raw, err := io.ReadAll(archive)
	if err != nil {
		return "", err
	}
	f.archiveSize = len(raw)
	f.filename = filename
	f.projectName = projectName
	f.language = language
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.projectID, nil
}

func (f *fakeSubmitter) GetAnalysis(ctx context.Context, projectID string) (*datamodel.Analysis, error) {
	step := f.fetchCalls
	if step >= len(f.snapshots) {
		step = len(f.snapshots) - 1
	}
	f.fetchCalls++
	return f.snapshots[step], nil
}

func newTestHandler(t *testing.T, conf *config.Config, fake *fakeSubmitter) (h *Handler, out *bytes.Buffer) {
	t.Helper()
	h, err := NewHandler(context.Background(), conf)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	h.submitter = fake
	out = &bytes.Buffer{}
	h.present = presenter.New(out, conf.Report.Verbose)
	return
}

func writeTestArchive(t *testing.T, dir, name string) (archive string) {
	t.Helper()
	archive = filepath.Join(dir, name)
	if err := os.WriteFile(archive, []byte("archive content"), 0o600); err != nil {
		t.Fatalf("could not create test archive, error: %s", err)
	}
	return
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "submit local archive",
			test: func(t *testing.T) {
				archive := writeTestArchive(t, t.TempDir(), "billing.zip")
				fake := &fakeSubmitter{projectID: "abc123"}
				h, _ := newTestHandler(t, &config.Config{ProjectName: "billing", Language: "cobol"}, fake)
				projectID, err := h.SubmitTarget(context.Background(), archive)
				if err != nil {
					t.Fatalf("SubmitTarget() error = %v", err)
				}
				if projectID != "abc123" {
					t.Errorf("SubmitTarget() = %q, want = %q", projectID, "abc123")
				}
				if fake.filename != "billing.zip" || fake.projectName != "billing" || fake.language != "cobol" {
					t.Errorf("submitted {%q %q %q}, want {billing.zip billing cobol}", fake.filename, fake.projectName, fake.language)
				}
				if fake.archiveSize != len("archive content") {
					t.Errorf("submitted %d archive bytes, want %d", fake.archiveSize, len("archive content"))
				}
				entry, err := h.ledger.Get("abc123")
				if err != nil {
					t.Fatalf("ledger.Get() error = %v", err)
				}
				if entry.Status != datamodel.StatusQueued {
					t.Errorf("recorded status = %q, want = %q", entry.Status, datamodel.StatusQueued)
				}
			},
		},
		{
			name: "submit rejects non-archive target",
			test: func(t *testing.T) {
				target := writeTestArchive(t, t.TempDir(), "notes.txt")
				fake := &fakeSubmitter{projectID: "abc123"}
				h, _ := newTestHandler(t, &config.Config{}, fake)
				if _, err := h.SubmitTarget(context.Background(), target); err == nil {
					t.Errorf("SubmitTarget() error = nil, want error")
				}
				if fake.filename != "" {
					t.Errorf("rejected target reached the backend: %q", fake.filename)
				}
			},
		},
		{
			name: "submit packs a source directory",
			test: func(t *testing.T) {
				dir := t.TempDir()
				src := filepath.Join(dir, "project")
				if err := os.MkdirAll(src, 0o755); err != nil {
					t.Fatalf("could not create source dir, error: %s", err)
				}
				writeTestArchive(t, src, "main.cbl")
				fake := &fakeSubmitter{projectID: "abc123"}
				h, _ := newTestHandler(t, &config.Config{}, fake)
				if _, err := h.SubmitTarget(context.Background(), src); err != nil {
					t.Fatalf("SubmitTarget() error = %v", err)
				}
				if !strings.HasSuffix(fake.filename, ".zip") {
					t.Errorf("packed archive name = %q, want a .zip", fake.filename)
				}
				if fake.archiveSize == 0 {
					t.Errorf("packed archive is empty")
				}
			},
		},
		{
			name: "one console line per outcome",
			test: func(t *testing.T) {
				console := &bytes.Buffer{}
				old := ConsoleLogger
				ConsoleLogger = slog.New(slog.NewTextHandler(console, nil))
				defer func() { ConsoleLogger = old }()

				archive := writeTestArchive(t, t.TempDir(), "billing.zip")
				fake := &fakeSubmitter{projectID: "abc123"}
				h, _ := newTestHandler(t, &config.Config{}, fake)
				if _, err := h.SubmitTarget(context.Background(), archive); err != nil {
					t.Fatalf("SubmitTarget() error = %v", err)
				}
				lines := strings.Count(console.String(), "\n")
				if lines != 1 {
					t.Errorf("success emitted %d console lines, want 1:\n%s", lines, console.String())
				}

				console.Reset()
				fake.submitErr = errors.New("backend down")
				if _, err := h.SubmitTarget(context.Background(), archive); err == nil {
					t.Fatalf("SubmitTarget() error = nil, want error")
				}
				lines = strings.Count(console.String(), "\n")
				if lines != 1 {
					t.Errorf("failure emitted %d console lines, want 1:\n%s", lines, console.String())
				}
			},
		},
		{
			name: "follow renders progress and records outcome",
			test: func(t *testing.T) {
				fake := &fakeSubmitter{
					projectID: "abc123",
					snapshots: []*datamodel.Analysis{
						{ProjectID: "abc123", Status: datamodel.StatusRunning, TotalFiles: 10, AnalyzedFiles: 3},
						{
							ProjectID: "abc123", Status: datamodel.StatusCompleted,
							TotalFiles: 10, AnalyzedFiles: 10, VulnerabilitiesFound: 1,
							Results: []datamodel.Finding{{
								ID: "f-1", VulnerabilityType: "SQL Injection",
								Severity: datamodel.SeverityCritical, FilePath: "src/billing.cbl",
							}},
						},
					},
				}
				conf := &config.Config{Guard: config.GuardConfig{PollInterval: time.Millisecond * 10}}
				h, out := newTestHandler(t, conf, fake)
				last, err := h.Follow(context.Background(), "abc123")
				if err != nil {
					t.Fatalf("Follow() error = %v", err)
				}
				if last.Status != datamodel.StatusCompleted {
					t.Errorf("last status = %q, want = %q", last.Status, datamodel.StatusCompleted)
				}
				if fake.fetchCalls != 2 {
					t.Errorf("fetched %d times, want 2", fake.fetchCalls)
				}
				rendered := out.String()
				if !strings.Contains(rendered, "30%") || !strings.Contains(rendered, "100%") {
					t.Errorf("progress lines missing:\n%s", rendered)
				}
				if !strings.Contains(rendered, "SQL Injection") {
					t.Errorf("findings missing:\n%s", rendered)
				}
				entry, err := h.ledger.Get("abc123")
				if err != nil {
					t.Fatalf("ledger.Get() error = %v", err)
				}
				if entry.Status != datamodel.StatusCompleted || entry.VulnerabilitiesFound != 1 {
					t.Errorf("recorded outcome = {%s %d}, want {completed 1}", entry.Status, entry.VulnerabilitiesFound)
				}
			},
		},
		{
			name: "failed analysis surfaces the server message",
			test: func(t *testing.T) {
				fake := &fakeSubmitter{
					snapshots: []*datamodel.Analysis{
						{ProjectID: "abc123", Status: datamodel.StatusFailed, ErrorMessage: "unsupported dialect"},
					},
				}
				conf := &config.Config{Guard: config.GuardConfig{PollInterval: time.Millisecond * 10}}
				h, _ := newTestHandler(t, conf, fake)
				_, err := h.Follow(context.Background(), "abc123")
				if err == nil || !strings.Contains(err.Error(), "unsupported dialect") {
					t.Errorf("Follow() error = %v, want the server message", err)
				}
			},
		},
		{
			name: "history export covers recorded submissions",
			test: func(t *testing.T) {
				fake := &fakeSubmitter{}
				h, _ := newTestHandler(t, &config.Config{}, fake)
				for _, entry := range []history.Entry{
					{ProjectID: "abc123", Language: "cobol", Status: datamodel.StatusCompleted, VulnerabilitiesFound: 2, SubmittedAt: time.UnixMilli(1000)},
					{ProjectID: "def456", Language: "c", Status: datamodel.StatusFailed, SubmittedAt: time.UnixMilli(2000)},
				} {
					if err := h.ledger.Set(&entry); err != nil {
						t.Fatalf("ledger.Set() error = %v", err)
					}
				}
				export := &bytes.Buffer{}
				if err := h.ExportHistory(export); err != nil {
					t.Fatalf("ExportHistory() error = %v", err)
				}
				envelope := struct {
					Start   time.Time          `json:"start"`
					End     time.Time          `json:"end"`
					Reports []datamodel.Report `json:"reports"`
				}{}
				if err := json.Unmarshal(export.Bytes(), &envelope); err != nil {
					t.Fatalf("export is not valid JSON, error: %s\n%s", err, export.String())
				}
				if len(envelope.Reports) != 2 {
					t.Fatalf("exported %d reports, want 2", len(envelope.Reports))
				}
				if envelope.Reports[0].ProjectID != "def456" || envelope.Reports[1].ProjectID != "abc123" {
					t.Errorf("unexpected export order: %+v", envelope.Reports)
				}
				if !envelope.Start.Equal(time.UnixMilli(1000)) || !envelope.End.Equal(time.UnixMilli(2000)) {
					t.Errorf("export span = [%s, %s], want the submissions span", envelope.Start, envelope.End)
				}
			},
		},
		{
			name: "report export appends to the report file",
			test: func(t *testing.T) {
				location := filepath.Join(t.TempDir(), "reports.json")
				fake := &fakeSubmitter{
					snapshots: []*datamodel.Analysis{
						{ProjectID: "abc123", Status: datamodel.StatusCompleted, VulnerabilitiesFound: 2},
					},
				}
				conf := &config.Config{
					Guard:  config.GuardConfig{PollInterval: time.Millisecond * 10},
					Report: config.ReportConfig{Location: location},
				}
				h, _ := newTestHandler(t, conf, fake)
				if _, err := h.Follow(context.Background(), "abc123"); err != nil {
					t.Fatalf("Follow() error = %v", err)
				}
				raw, err := os.ReadFile(location)
				if err != nil {
					t.Fatalf("could not read report file, error: %s", err)
				}
				if !strings.Contains(string(raw), `"project_id":"abc123"`) {
					t.Errorf("report file misses the analysis:\n%s", raw)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
