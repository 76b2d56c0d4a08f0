package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/talentboard/pipeline-api/internal/middleware"
	"github.com/talentboard/pipeline-api/internal/models"
	"github.com/talentboard/pipeline-api/internal/service"
	appErrors "github.com/talentboard/pipeline-api/pkg/errors"
)

type invitationServiceMock struct {
	sendResp   *models.Invitation
	sendErr    error
	getResp    *models.Invitation
	getErr     error
	listResp   []models.InvitationDetail
	listFilter models.InvitationFilter
	respond    *models.Invitation
	respondErr error
}

func (m *invitationServiceMock) Send(ctx context.Context, req service.SendInvitationRequest, actor models.UserInfo) (*models.Invitation, error) {
	return m.sendResp, m.sendErr
}

func (m *invitationServiceMock) Get(ctx context.Context, id string, actor models.UserInfo) (*models.Invitation, error) {
	return m.getResp, m.getErr
}

func (m *invitationServiceMock) List(ctx context.Context, filter models.InvitationFilter, actor models.UserInfo) ([]models.InvitationDetail, *models.Pagination, error) {
	m.listFilter = filter
	return m.listResp, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.listResp)}, nil
}

func (m *invitationServiceMock) Respond(ctx context.Context, id string, req service.RespondInvitationRequest, actor models.UserInfo) (*models.Invitation, error) {
	return m.respond, m.respondErr
}

func candidateClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleCandidate}
}

func TestInvitationHandlerSend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invitationServiceMock{
		sendResp: &models.Invitation{
			ID:        "inv-1",
			Status:    models.InvitationStatusPending,
			ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
		},
	}
	h := NewInvitationHandler(mockSvc)

	payload, _ := json.Marshal(service.SendInvitationRequest{JobPostingID: "post-1", RecipientID: "cand-1"})
	c, w := newGinContext(http.MethodPost, "/invitations", payload)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Send(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "inv-1")
}

func TestInvitationHandlerSendDuplicateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invitationServiceMock{
		sendErr: appErrors.Clone(appErrors.ErrConflict, "a pending invitation already exists"),
	}
	h := NewInvitationHandler(mockSvc)

	payload, _ := json.Marshal(service.SendInvitationRequest{JobPostingID: "post-1", RecipientID: "cand-1"})
	c, w := newGinContext(http.MethodPost, "/invitations", payload)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.Send(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestInvitationHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invitationServiceMock{}
	h := NewInvitationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/invitations?job_posting_id=post-1&status=PENDING", nil)
	c.Set(middleware.ContextUserKey, recruiterClaims())

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "post-1", mockSvc.listFilter.JobPostingID)
	require.Equal(t, models.InvitationStatusPending, mockSvc.listFilter.Status)
}

func TestInvitationHandlerRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()
	mockSvc := &invitationServiceMock{
		respond: &models.Invitation{ID: "inv-1", Status: models.InvitationStatusAccepted, RespondedAt: &now},
	}
	h := NewInvitationHandler(mockSvc)

	payload, _ := json.Marshal(service.RespondInvitationRequest{Action: "accept"})
	c, w := newGinContext(http.MethodPost, "/invitations/inv-1/response", payload)
	c.Params = gin.Params{{Key: "id", Value: "inv-1"}}
	c.Set(middleware.ContextUserKey, candidateClaims())

	h.Respond(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(models.InvitationStatusAccepted))
}

func TestInvitationHandlerRespondExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &invitationServiceMock{
		respondErr: appErrors.Clone(appErrors.ErrBusinessRule, "invitation has expired"),
	}
	h := NewInvitationHandler(mockSvc)

	payload, _ := json.Marshal(service.RespondInvitationRequest{Action: "accept"})
	c, w := newGinContext(http.MethodPost, "/invitations/inv-1/response", payload)
	c.Params = gin.Params{{Key: "id", Value: "inv-1"}}
	c.Set(middleware.ContextUserKey, candidateClaims())

	h.Respond(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
