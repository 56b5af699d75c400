package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

var (
	created = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	evalCols = []string{"id", "tenant_id", "image", "scanners", "policy",
		"critical", "high", "medium", "low", "unknown",
		"outcome", "degraded", "artifact_urls", "duration_ms", "created_at"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleEvaluation() *gate.Evaluation {
	return &gate.Evaluation{
		ID:           "e1",
		TenantID:     "acme",
		Image:        "quay.io/ee:1",
		Scanners:     []scans.Scanner{scans.ScannerGrype, scans.ScannerTrivy},
		Policy:       gate.PolicyHigh,
		Tally:        gate.SeverityTally{Critical: 1, Medium: 2, Unknown: 1},
		Outcome:      gate.OutcomeFail,
		ArtifactURLs: map[string]string{"a.json": "http://minio/a.json"},
		DurationMS:   1200,
		CreatedAt:    created,
	}
}

func TestEvaluationSave(t *testing.T) {
	db, mock := newMock(t)
	e := sampleEvaluation()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_evaluations")).
		WithArgs("e1", "acme", "quay.io/ee:1", "grype,trivy", "high",
			1, 0, 2, 0, 1,
			"fail", false, `{"a.json":"http://minio/a.json"}`, int64(1200), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewEvaluationRepository(db).Save(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationSaveEmptyTenantAndURLs(t *testing.T) {
	db, mock := newMock(t)
	e := sampleEvaluation()
	e.TenantID = ""
	e.ArtifactURLs = nil

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_evaluations")).
		WithArgs("e1", "-", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewEvaluationRepository(db).Save(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func evalRow(rows *sqlmock.Rows) *sqlmock.Rows {
	return rows.AddRow("e1", "acme", "quay.io/ee:1", "grype,trivy", "high",
		1, 0, 2, 0, 1,
		"fail", true, []byte(`{"a.json":"http://minio/a.json"}`), int64(1200), created)
}

func TestEvaluationGet(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gate_evaluations")).
		WithArgs("acme", "e1").
		WillReturnRows(evalRow(sqlmock.NewRows(evalCols)))

	e, err := NewEvaluationRepository(db).Get(context.Background(), "acme", "e1")
	require.NoError(t, err)

	want := sampleEvaluation()
	want.Degraded = true
	assert.Equal(t, want, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gate_evaluations")).
		WithArgs("acme", "nope").
		WillReturnRows(sqlmock.NewRows(evalCols))

	_, err := NewEvaluationRepository(db).Get(context.Background(), "acme", "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEvaluationLatestDefaultsLimit(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT ?")).
		WithArgs("acme", 20).
		WillReturnRows(evalRow(evalRow(sqlmock.NewRows(evalCols))))

	list, err := NewEvaluationRepository(db).Latest(context.Background(), "acme", 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationSummary(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS evaluations")).
		WithArgs("acme", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"evaluations", "failed", "degraded", "critical", "high", "medium", "low"}).
			AddRow(10, 3, 1, 4, 5, 6, 7))

	s, err := NewEvaluationRepository(db).Summary(context.Background(), "acme", 0)
	require.NoError(t, err)
	assert.Equal(t, gate.Summary{Evaluations: 10, Failed: 3, Degraded: 1, Critical: 4, High: 5, Medium: 6, Low: 7}, s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationPaginate(t *testing.T) {
	db, mock := newMock(t)
	f := gate.Filter{Image: "ee_1%", Outcome: gate.OutcomeFail}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id=? AND image LIKE ? AND outcome=?\nORDER BY created_at DESC, id DESC\nLIMIT ? OFFSET ?")).
		WithArgs("acme", `%ee\_1\%%`, "fail", 10, 10).
		WillReturnRows(evalRow(sqlmock.NewRows(evalCols)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM gate_evaluations")).
		WithArgs("acme", `%ee\_1\%%`, "fail").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	p, err := NewEvaluationRepository(db).Paginate(context.Background(), "acme", 2, 10, f)
	require.NoError(t, err)
	assert.Len(t, p.Data, 1)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, int64(11), p.Total)
	assert.Equal(t, 2, p.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationPaginateQueryError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	_, err := NewEvaluationRepository(db).Paginate(context.Background(), "acme", 1, 20, gate.Filter{})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "-", stringOrDash("  "))
	assert.Equal(t, "{}", jsonOrEmpty(""))
	assert.Equal(t, `{"raw":"not json"}`, jsonOrEmpty("not json"))
	assert.Equal(t, `{"a":1}`, jsonOrEmpty(`{"a":1}`))
	assert.Nil(t, splitScanners("-"))
	assert.Equal(t, []scans.Scanner{scans.ScannerTrivy}, splitScanners("trivy"))
	assert.Equal(t, `50\%\_off\\`, escapeLikePattern(`50%_off\`))

	m, err := decodeURLs([]byte("{}"))
	require.NoError(t, err)
	assert.Nil(t, m)
}
