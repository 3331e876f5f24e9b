package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"github.com/MarcoPoloResearchLab/register/internal/database"
	"github.com/MarcoPoloResearchLab/register/internal/realtime"
	"github.com/MarcoPoloResearchLab/register/internal/register"
	"github.com/MarcoPoloResearchLab/register/internal/view"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type testServer struct {
	handler    http.Handler
	store      *appointments.Store
	view       *view.Synchronizer
	dispatcher *realtime.Dispatcher
}

func newTestServer(testContext *testing.T) *testServer {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(database.Config{
		Path:    filepath.Join(testContext.TempDir(), "register.db"),
		Name:    "appointmentsDB",
		Version: 1,
	}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	testContext.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := func() time.Time { return fixedNow }
	store, err := appointments.NewStore(appointments.StoreConfig{Database: db, Clock: clock})
	if err != nil {
		testContext.Fatalf("failed to create store: %v", err)
	}
	dispatcher := realtime.NewDispatcher(64)
	synchronizer := view.NewSynchronizer(view.SynchronizerConfig{
		Publisher: dispatcher,
		Clock:     clock,
	})
	coordinator, err := register.NewCoordinator(register.CoordinatorConfig{
		Store:     store,
		Allocator: appointments.NewAllocator(),
		View:      synchronizer,
		Clock:     clock,
	})
	if err != nil {
		testContext.Fatalf("failed to create coordinator: %v", err)
	}
	if err := coordinator.Load(testContext.Context()); err != nil {
		testContext.Fatalf("failed to load register: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Coordinator:       coordinator,
		View:              synchronizer,
		Realtime:          dispatcher,
		RegisterName:      "appointmentsDB",
		HeartbeatInterval: time.Hour,
		Clock:             clock,
	})
	if err != nil {
		testContext.Fatalf("failed to construct http handler: %v", err)
	}
	return &testServer{
		handler:    handler,
		store:      store,
		view:       synchronizer,
		dispatcher: dispatcher,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s *testServer) createAppointment(testContext *testing.T, name string) int64 {
	testContext.Helper()
	recorder := s.do(http.MethodPost, "/appointments", `{"name":"`+name+`","phone":"555","date":"2024-01-01","time":"09:00"}`)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected created status, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload createResponsePayload
	decodeBody(testContext, recorder, &payload)
	return payload.Appointment.Token
}

func decodeBody(testContext *testing.T, recorder *httptest.ResponseRecorder, target any) {
	testContext.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		testContext.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func ginTestContext(recorder *httptest.ResponseRecorder, method, path string) (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	context, engine := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(method, path, http.NoBody)
	return context, engine
}
