package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/internal/service"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
)

type userServiceMock struct {
	filter    models.UserFilter
	roleReq   models.SetRoleRequest
	activeReq models.SetActiveRequest
	target    string
	actor     policy.Actor
	meta      service.RequestMeta
	err       error
}

func (m *userServiceMock) List(_ context.Context, filter models.UserFilter) ([]models.Account, *models.Pagination, error) {
	m.filter = filter
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.Account{{ID: "u1", Email: "ada@example.com", Role: models.RoleUser, Active: true}},
		&models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *userServiceMock) SetRole(_ context.Context, actor policy.Actor, userID string, req models.SetRoleRequest, meta service.RequestMeta) (*models.Profile, error) {
	m.actor, m.target, m.roleReq, m.meta = actor, userID, req, meta
	if m.err != nil {
		return nil, m.err
	}
	return &models.Profile{UserID: userID, Role: req.Role}, nil
}

func (m *userServiceMock) SetActive(_ context.Context, actor policy.Actor, userID string, req models.SetActiveRequest, meta service.RequestMeta) error {
	m.actor, m.target, m.activeReq, m.meta = actor, userID, req, meta
	return m.err
}

func TestUserHandlerListParsesFilters(t *testing.T) {
	svc := &userServiceMock{}
	c, w := newContext(http.MethodGet, "/admin/users?q=ada&role=Premium&active=false&sort_by=email&sort_order=asc&page=2&page_size=5", "")
	asUser(c, "admin-1", models.RoleAdmin)
	NewUserHandler(svc).List(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ada", svc.filter.Search)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, models.RolePremium, *svc.filter.Role)
	require.NotNil(t, svc.filter.Active)
	assert.False(t, *svc.filter.Active)
	assert.Equal(t, "email", svc.filter.SortBy)
	assert.Equal(t, "asc", svc.filter.SortOrder)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)

	env := decode(t, w)
	var accounts []models.Account
	require.NoError(t, json.Unmarshal(env.Data, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "ada@example.com", accounts[0].Email)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestUserHandlerListRejectsBadActive(t *testing.T) {
	c, w := newContext(http.MethodGet, "/admin/users?active=maybe", "")
	NewUserHandler(&userServiceMock{}).List(c)
	requireCode(t, w, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestUserHandlerSetRole(t *testing.T) {
	svc := &userServiceMock{}
	c, w := newContext(http.MethodPatch, "/admin/users/u1/role", `{"role":" Admin "}`)
	c.Request.Header.Set("User-Agent", "skillcy-test")
	asUser(c, "admin-1", models.RoleAdmin)
	withParam(c, "userId", "u1")
	NewUserHandler(svc).SetRole(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "u1", svc.target)
	assert.Equal(t, "admin-1", svc.actor.UserID)
	assert.Equal(t, models.RoleAdmin, svc.roleReq.Role)
	assert.Equal(t, "skillcy-test", svc.meta.UserAgent)
}

func TestUserHandlerSetRoleBadJSON(t *testing.T) {
	c, w := newContext(http.MethodPatch, "/admin/users/u1/role", `{"role":`)
	asUser(c, "admin-1", models.RoleAdmin)
	NewUserHandler(&userServiceMock{}).SetRole(c)
	requireCode(t, w, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestUserHandlerSetStatus(t *testing.T) {
	svc := &userServiceMock{}
	c, w := newContext(http.MethodPatch, "/admin/users/u1/status", `{"active":false}`)
	asUser(c, "admin-1", models.RoleAdmin)
	withParam(c, "userId", "u1")
	NewUserHandler(svc).SetStatus(c)

	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, svc.activeReq.Active)
	assert.False(t, *svc.activeReq.Active)
}

func TestUserHandlerSetStatusPropagatesErrors(t *testing.T) {
	svc := &userServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "admins cannot deactivate themselves")}
	c, w := newContext(http.MethodPatch, "/admin/users/admin-1/status", `{"active":false}`)
	asUser(c, "admin-1", models.RoleAdmin)
	withParam(c, "userId", "admin-1")
	NewUserHandler(svc).SetStatus(c)
	requireCode(t, w, http.StatusForbidden, appErrors.ErrForbidden.Code)
}

func TestUserHandlerRequiresActor(t *testing.T) {
	c, w := newContext(http.MethodPatch, "/admin/users/u1/status", `{"active":true}`)
	NewUserHandler(&userServiceMock{}).SetStatus(c)
	requireCode(t, w, http.StatusUnauthorized, appErrors.ErrUnauthorized.Code)
}
