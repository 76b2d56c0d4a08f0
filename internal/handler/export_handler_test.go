package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/middleware"
	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type exportServiceMock struct {
	createResp  *service.ExportJobResponse
	createErr   error
	statusResp  *service.ExportJobResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req service.CreateExportRequest, actor models.UserInfo) (*service.ExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string, actor models.UserInfo) (*service.ExportJobResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createResp: &service.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued},
	}
	h := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateExportRequest{ProcessID: "proc-1", Format: "csv"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "job-1")
}

func TestExportHandlerCreateOwnershipRefused(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createErr: appErrors.Clone(appErrors.ErrOwnership, "job posting belongs to another organization"),
	}
	h := NewExportHandler(mockSvc)

	payload, _ := json.Marshal(service.CreateExportRequest{ProcessID: "proc-1", Format: "pdf"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Create(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/exports/download/tok"
	mockSvc := &exportServiceMock{
		statusResp: &service.ExportJobResponse{ID: "job-1", Status: models.ExportStatusFinished, ResultURL: &url},
	}
	h := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "download/tok")
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "export*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Transitioned At,From Stage,To Stage\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{
		download: &service.ExportDownload{
			File:      file,
			Filename:  "process_proc-1.csv",
			Format:    models.ExportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	h := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "process_proc-1.csv")
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"),
	}
	h := NewExportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	h.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
