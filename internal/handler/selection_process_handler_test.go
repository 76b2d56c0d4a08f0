package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/middleware"
	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type processServiceMock struct {
	startResp      *models.SelectionProcess
	startErr       error
	detail         *models.SelectionProcessDetail
	detailErr      error
	listResp       []models.SelectionProcessDetail
	listFilter     models.SelectionProcessFilter
	transition     *models.StageTransition
	transitionErr  error
	history        []models.StageTransitionDetail
	historyErr     error
}

func (m *processServiceMock) Start(ctx context.Context, req service.StartProcessRequest, actor models.UserInfo) (*models.SelectionProcess, error) {
	return m.startResp, m.startErr
}

func (m *processServiceMock) Get(ctx context.Context, id string, actor models.UserInfo) (*models.SelectionProcessDetail, error) {
	return m.detail, m.detailErr
}

func (m *processServiceMock) List(ctx context.Context, filter models.SelectionProcessFilter) ([]models.SelectionProcessDetail, *models.Pagination, error) {
	m.listFilter = filter
	return m.listResp, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.listResp)}, nil
}

func (m *processServiceMock) Transition(ctx context.Context, processID string, req service.TransitionRequest, actor models.UserInfo) (*models.StageTransition, error) {
	return m.transition, m.transitionErr
}

func (m *processServiceMock) History(ctx context.Context, processID string, actor models.UserInfo) ([]models.StageTransitionDetail, error) {
	return m.history, m.historyErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func recruiterClaims() *models.JWTClaims {
	org := "org-1"
	return &models.JWTClaims{UserID: "rec-1", Role: models.RoleRecruiter, OrganizationID: &org}
}

func TestSelectionProcessHandlerStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &processServiceMock{
		startResp: &models.SelectionProcess{ID: "proc-1", ApplicationID: "app-1", Version: 1},
	}
	h := NewSelectionProcessHandler(mockSvc)

	payload, _ := json.Marshal(service.StartProcessRequest{ApplicationID: "app-1"})
	c, w := newGinContext(http.MethodPost, "/selection-processes", payload)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Start(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestSelectionProcessHandlerStartRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSelectionProcessHandler(&processServiceMock{})

	c, w := newGinContext(http.MethodPost, "/selection-processes", []byte("{broken"))
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Start(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelectionProcessHandlerStartRequiresActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSelectionProcessHandler(&processServiceMock{})

	payload, _ := json.Marshal(service.StartProcessRequest{ApplicationID: "app-1"})
	c, w := newGinContext(http.MethodPost, "/selection-processes", payload)

	h.Start(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSelectionProcessHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &processServiceMock{}
	h := NewSelectionProcessHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/selection-processes?job_posting_id=post-1&active_only=true&page=2&page_size=10", nil)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "post-1", mockSvc.listFilter.JobPostingID)
	require.True(t, mockSvc.listFilter.ActiveOnly)
	require.Equal(t, 2, mockSvc.listFilter.Page)
	require.Equal(t, 10, mockSvc.listFilter.PageSize)
}

func TestSelectionProcessHandlerTransitionConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &processServiceMock{
		transitionErr: appErrors.Clone(appErrors.ErrConcurrentModification, "process was modified concurrently"),
	}
	h := NewSelectionProcessHandler(mockSvc)

	payload, _ := json.Marshal(service.TransitionRequest{ToStageID: "stage-2"})
	c, w := newGinContext(http.MethodPost, "/selection-processes/proc-1/transitions", payload)
	c.Params = gin.Params{{Key: "id", Value: "proc-1"}}
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Transition(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSelectionProcessHandlerHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()
	mockSvc := &processServiceMock{
		history: []models.StageTransitionDetail{
			{StageTransition: models.StageTransition{ID: "tr-2", TransitionedAt: now}},
			{StageTransition: models.StageTransition{ID: "tr-1", TransitionedAt: now.Add(-time.Hour)}},
		},
	}
	h := NewSelectionProcessHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/selection-processes/proc-1/history", nil)
	c.Params = gin.Params{{Key: "id", Value: "proc-1"}}
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.History(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "tr-2")
}
