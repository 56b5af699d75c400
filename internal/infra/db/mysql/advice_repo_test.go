package mysql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/vulngate/internal/domain/advice"
	"github.com/bryanwahyu/vulngate/internal/domain/scanerrors"
)

var adviceCols = []string{"id", "tenant_id", "evaluation_id", "image", "result_json", "created_at"}

func TestAdviceSave(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_advice")).
		WithArgs("a1", "acme", "e1", "-", "{}", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewAdviceRepository(db).Save(context.Background(), &advice.Advice{
		ID: "a1", TenantID: "acme", EvaluationID: "e1", CreatedAt: created,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvicePaginate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gate_advice")).
		WithArgs("acme", 20, 20).
		WillReturnRows(sqlmock.NewRows(adviceCols).
			AddRow("a1", "acme", "e1", "nginx:1", `{"advice":"x"}`, created))

	list, err := NewAdviceRepository(db).Paginate(context.Background(), "acme", 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, `{"advice":"x"}`, list[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdviceLatestByEvaluation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id=? AND evaluation_id=?")).
		WithArgs("acme", "e1").
		WillReturnRows(sqlmock.NewRows(adviceCols).
			AddRow("a2", "acme", "e1", "nginx:1", `{}`, created))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id=? AND evaluation_id=?")).
		WithArgs("acme", "e2").
		WillReturnRows(sqlmock.NewRows(adviceCols))

	repo := NewAdviceRepository(db)
	a, err := repo.LatestByEvaluation(context.Background(), "acme", "e1")
	require.NoError(t, err)
	assert.Equal(t, advice.AdviceID("a2"), a.ID)

	a, err = repo.LatestByEvaluation(context.Background(), "acme", "e2")
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanErrorSaveAndList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_scan_errors")).
		WithArgs("acme", "job-1", "ee", "trivy", "preflight", "scanner unavailable: trivy", `{"raw":"oops"}`, created).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM gate_scan_errors")).
		WithArgs("acme", "job-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "job_id", "image", "scanners", "phase", "message", "details_json", "created_at"}).
			AddRow(42, "acme", "job-1", "ee", "trivy", "preflight", "scanner unavailable: trivy", `{"raw":"oops"}`, created))

	repo := NewScanErrorRepository(db)
	e := &scanerrors.ScanError{
		TenantID: "acme", JobID: "job-1", Image: "ee", Scanners: "trivy",
		Phase: scanerrors.PhasePreflight, Message: "scanner unavailable: trivy",
		DetailsJSON: "oops", CreatedAt: created,
	}
	require.NoError(t, repo.Save(context.Background(), e))
	assert.Equal(t, int64(42), e.ID)

	list, err := repo.ListByJob(context.Background(), "acme", "job-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, scanerrors.PhasePreflight, list[0].Phase)
	assert.NoError(t, mock.ExpectationsWereMet())
}
