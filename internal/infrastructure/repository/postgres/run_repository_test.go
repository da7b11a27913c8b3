package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RunRepository{db: db}, mock, func() { _ = db.Close() }
}

func successResult() domain.Result {
	return domain.Result{
		RunID:  "run-1",
		Status: domain.RunSuccess,
		Answer: &domain.StructuredAnswer{
			Text:         "Answer [1].",
			CitedSources: []string{"akira.pdf"},
		},
		Trace: []domain.StageRecord{
			{Name: domain.StageEmbed, Status: domain.StageCompleted},
		},
	}
}

func TestSaveRunInsertsTerminalResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO answer_runs").
		WithArgs("run-1", "what does akira exploit?", "SUCCESS", false, "Answer [1].",
			sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	query := domain.Query{Text: "what does akira exploit?"}
	if err := repo.SaveRun(context.Background(), query, successResult()); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRunFailureResultCarriesFailureJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO answer_runs").
		WithArgs("run-2", "q", "FAILURE", false, "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := domain.Result{
		RunID:  "run-2",
		Status: domain.RunFailure,
		Failure: &domain.FailureDetail{
			Stage:   domain.StageSearch,
			Kind:    "search_error",
			Message: "connection refused",
		},
	}
	if err := repo.SaveRun(context.Background(), domain.Query{Text: "q"}, result); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveRunPropagatesInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO answer_runs").
		WillReturnError(errors.New("connection reset"))

	err := repo.SaveRun(context.Background(), domain.Query{Text: "q"}, successResult())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestListRecentMapsRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Now()
	rows := sqlmock.NewRows([]string{"id", "question", "status", "uncited", "cited_sources", "created_at"}).
		AddRow("run-1", "q1", "SUCCESS", false, []byte(`["akira.pdf"]`), created).
		AddRow("run-2", "q2", "NO_SOURCES", false, []byte(`[]`), created)

	mock.ExpectQuery("SELECT id, question, status, uncited, cited_sources, created_at").
		WithArgs(20).
		WillReturnRows(rows)

	got, err := repo.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].Status != domain.RunSuccess || got[0].CitedSources[0] != "akira.pdf" {
		t.Fatalf("unexpected first summary: %+v", got[0])
	}
	if got[1].Status != domain.RunNoSources || len(got[1].CitedSources) != 0 {
		t.Fatalf("unexpected second summary: %+v", got[1])
	}
}
