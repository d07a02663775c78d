package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/museworks/museflow/internal/store"
)

func TestCreateIdeaSuccess(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &IdeasHandler{Store: &store.Store{DB: db}}
	now := time.Now()

	mock.ExpectQuery(`UPDATE projects SET last_accessed_at=now\(\) WHERE id=\$1 AND user_id=\$2`).
		WithArgs("proj-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "description", "created_at", "last_accessed_at"}).
			AddRow("proj-1", "user-1", "Mascots", "", now, now))

	mock.ExpectQuery(`INSERT INTO ideas`).
		WithArgs("proj-1", "user-1", "Fox mascot", "a sly one").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("idea-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/projects/proj-1/ideas", strings.NewReader(`{"title":"Fox mascot","content":"a sly one"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("proj-1")

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "idea-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateIdeaRejectsForeignProject(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &IdeasHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`UPDATE projects SET last_accessed_at=now\(\) WHERE id=\$1 AND user_id=\$2`).
		WithArgs("proj-1", "intruder").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/proj-1/ideas", strings.NewReader(`{"title":"Fox mascot"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "intruder")
	ctx.SetParamNames("id")
	ctx.SetParamValues("proj-1")

	err = handler.create(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a project the caller does not own, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
