package objstatus

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/store"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	sdb := sqlx.NewDb(db, "postgres")
	gw := store.NewGateway(sdb, 4)
	return New(gw), mock
}

func statusRow(key string, wanted, actual model.StatusKind) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"key", "kind", "wanted", "prev_wanted", "actual", "prev_actual", "created_at", "updated_at"}).
		AddRow(key, model.KindCargo, wanted, model.StatusUnknown, actual, model.StatusUnknown, time.Now(), time.Now())
}

func TestCreateInsertsWantedCreatedActualUnknown(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO statuses").WithArgs("web.global", model.KindCargo, model.StatusCreated, model.StatusUnknown).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").WithArgs("web.global").
		WillReturnRows(statusRow("web.global", model.StatusCreated, model.StatusUnknown))

	st, err := s.Create(context.Background(), model.KindCargo, "web.global")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if st.Wanted != model.StatusCreated || st.Actual != model.StatusUnknown {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestSetWantedRejectsInvalidTransition(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.SetWanted(context.Background(), "web.global", model.StatusUnknown)
	if err == nil {
		t.Fatal("expected error for invalid wanted status")
	}
}

func TestSetActualCarriesPreviousValue(t *testing.T) {
	s, mock := newTestStore(t)
	mock.ExpectQuery("SELECT \\* FROM statuses WHERE key = \\$1").WithArgs("web.global").
		WillReturnRows(statusRow("web.global", model.StatusCreated, model.StatusUnknown))
	mock.ExpectExec("UPDATE statuses SET actual = :actual, prev_actual = :prev_actual, updated_at = :updated_at").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.SetActual(context.Background(), "web.global", model.StatusStart); err != nil {
		t.Fatalf("set actual: %v", err)
	}
}
