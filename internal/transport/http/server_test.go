package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"vidhub/internal/domain/models"
	"vidhub/internal/middleware"
	tokenservice "vidhub/internal/services/token_service"
	userservice "vidhub/internal/services/user_service"
	httprouters "vidhub/internal/transport/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input userservice.RegisterInput) (models.Identity, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, identifier, password string) (models.Identity, *models.TokenPair, error) {
	args := m.Called(ctx, identifier, password)
	var pair *models.TokenPair
	if args.Get(1) != nil {
		pair = args.Get(1).(*models.TokenPair)
	}
	return args.Get(0).(models.Identity), pair, args.Error(2)
}

func (m *MockUserService) CurrentUser(ctx context.Context, userID uuid.UUID) (models.Identity, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	args := m.Called(ctx, userID, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockUserService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email *string) (models.Identity, error) {
	args := m.Called(ctx, userID, fullName, email)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockUserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar *multipart.FileHeader) (models.Identity, error) {
	args := m.Called(ctx, userID, avatar)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockUserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, coverImage *multipart.FileHeader) (models.Identity, error) {
	args := m.Called(ctx, userID, coverImage)
	return args.Get(0).(models.Identity), args.Error(1)
}

func (m *MockUserService) ChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error) {
	args := m.Called(ctx, username, viewerID)
	return args.Get(0).(models.ChannelProfile), args.Error(1)
}

func (m *MockUserService) WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchHistoryItem, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WatchHistoryItem), args.Error(1)
}

func (m *MockUserService) RecordWatchEvent(ctx context.Context, userID, videoID uuid.UUID) error {
	args := m.Called(ctx, userID, videoID)
	return args.Error(0)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Refresh(ctx context.Context, presented string) (*models.TokenPair, error) {
	args := m.Called(ctx, presented)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenPair), args.Error(1)
}

func (m *MockTokenService) Logout(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type testValidator struct {
	validate *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type fixture struct {
	echo    *echo.Echo
	routers *httprouters.Routers
	users   *MockUserService
	tokens  *MockTokenService
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	e := echo.New()
	e.Validator = &testValidator{validate: validator.New()}

	users := new(MockUserService)
	tokens := new(MockTokenService)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	routers := httprouters.NewRouter(log, users, tokens, false, 15*time.Minute, 168*time.Hour)

	return fixture{echo: e, routers: routers, users: users, tokens: tokens}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func withIdentity(c echo.Context, identity models.Identity) {
	middleware.WithIdentity(c, identity)
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLogin_Success_SetsSessionCookies(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	pair := &models.TokenPair{AccessToken: "access-token", RefreshToken: "refresh-token"}

	f.users.On("Login", mock.Anything, "alice", "secret-password").
		Return(models.Identity{ID: userID, Username: "alice"}, pair, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/users/login",
		`{"identifier":"alice","password":"secret-password"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Login(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User logged in successfully", body["message"])

	access := cookieByName(rec, "accessToken")
	require.NotNil(t, access)
	assert.Equal(t, "access-token", access.Value)
	assert.True(t, access.HttpOnly)

	refresh := cookieByName(rec, "refreshToken")
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-token", refresh.Value)
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture(t)

	f.users.On("Login", mock.Anything, "ghost", "whatever").
		Return(models.Identity{}, nil, userservice.ErrUserNotFound)

	req := jsonRequest(http.MethodPost, "/api/v1/users/login",
		`{"identifier":"ghost","password":"whatever"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Login(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)

	f.users.On("Login", mock.Anything, "alice", "wrong").
		Return(models.Identity{}, nil, userservice.ErrInvalidCredentials)

	req := jsonRequest(http.MethodPost, "/api/v1/users/login",
		`{"identifier":"alice","password":"wrong"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Login(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t)

	req := jsonRequest(http.MethodPost, "/api/v1/users/login", `{"identifier":"alice"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Login(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_CookiePreferredOverBody(t *testing.T) {
	f := newFixture(t)

	pair := &models.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}
	f.tokens.On("Refresh", mock.Anything, "cookie-token").Return(pair, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/users/refresh-token",
		`{"refresh_token":"body-token"}`)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "cookie-token"})
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Refresh(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-refresh", cookieByName(rec, "refreshToken").Value)
	f.tokens.AssertExpectations(t)
}

func TestRefresh_BodyFallback(t *testing.T) {
	f := newFixture(t)

	pair := &models.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}
	f.tokens.On("Refresh", mock.Anything, "body-token").Return(pair, nil)

	req := jsonRequest(http.MethodPost, "/api/v1/users/refresh-token",
		`{"refresh_token":"body-token"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Refresh(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh_ReusedToken(t *testing.T) {
	f := newFixture(t)

	f.tokens.On("Refresh", mock.Anything, "stale-token").
		Return(nil, tokenservice.ErrTokenReused)

	req := jsonRequest(http.MethodPost, "/api/v1/users/refresh-token",
		`{"refresh_token":"stale-token"}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Refresh(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is expired or used", decodeBody(t, rec)["message"])
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newFixture(t)

	req := jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", `{}`)
	rec := httptest.NewRecorder()

	require.NoError(t, f.routers.Refresh(f.echo.NewContext(req, rec)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.tokens.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestLogout_ClearsCookies(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	f.tokens.On("Logout", mock.Anything, userID).Return(nil)

	req := jsonRequest(http.MethodPost, "/api/v1/users/logout", "")
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	withIdentity(c, models.Identity{ID: userID})

	require.NoError(t, f.routers.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	access := cookieByName(rec, "accessToken")
	require.NotNil(t, access)
	assert.Empty(t, access.Value)
	assert.Negative(t, access.MaxAge)

	f.tokens.AssertExpectations(t)
}

func TestCurrentUser_ReturnsFreshSnapshot(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	f.users.On("CurrentUser", mock.Anything, userID).
		Return(models.Identity{ID: userID, Username: "alice-renamed"}, nil)

	req := jsonRequest(http.MethodGet, "/api/v1/users/current-user", "")
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	withIdentity(c, models.Identity{ID: userID, Username: "alice"})

	require.NoError(t, f.routers.CurrentUser(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "alice-renamed", data["username"],
		"must serve the database snapshot, not the middleware copy")
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	f.users.On("ChangePassword", mock.Anything, userID, "wrong-old", "brand-new").
		Return(userservice.ErrInvalidCredentials)

	req := jsonRequest(http.MethodPost, "/api/v1/users/change-password",
		`{"old_password":"wrong-old","new_password":"brand-new"}`)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	withIdentity(c, models.Identity{ID: userID})

	require.NoError(t, f.routers.ChangePassword(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAccount_Conflict(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	email := "taken@example.com"

	f.users.On("UpdateAccount", mock.Anything, userID, (*string)(nil), &email).
		Return(models.Identity{}, userservice.ErrUserExists)

	req := jsonRequest(http.MethodPatch, "/api/v1/users/update-account",
		`{"email":"taken@example.com"}`)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	withIdentity(c, models.Identity{ID: userID})

	require.NoError(t, f.routers.UpdateAccount(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestChannelProfile_NotFound(t *testing.T) {
	f := newFixture(t)

	viewerID := uuid.New()
	f.users.On("ChannelProfile", mock.Anything, "ghost", viewerID).
		Return(models.ChannelProfile{}, userservice.ErrChannelNotFound)

	req := jsonRequest(http.MethodGet, "/api/v1/users/c/ghost", "")
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames("username")
	c.SetParamValues("ghost")
	withIdentity(c, models.Identity{ID: viewerID})

	require.NoError(t, f.routers.ChannelProfile(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordWatchEvent_InvalidVideoID(t *testing.T) {
	f := newFixture(t)

	req := jsonRequest(http.MethodPost, "/api/v1/users/history/not-a-uuid", "")
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	c.SetParamNames("videoId")
	c.SetParamValues("not-a-uuid")
	withIdentity(c, models.Identity{ID: uuid.New()})

	require.NoError(t, f.routers.RecordWatchEvent(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "RecordWatchEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestWatchHistory_Success(t *testing.T) {
	f := newFixture(t)

	userID := uuid.New()
	items := []models.WatchHistoryItem{{Video: models.Video{Title: "go tutorial"}}}

	f.users.On("WatchHistory", mock.Anything, userID).Return(items, nil)

	req := jsonRequest(http.MethodGet, "/api/v1/users/history", "")
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	withIdentity(c, models.Identity{ID: userID})

	require.NoError(t, f.routers.WatchHistory(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go tutorial")
}
