package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"vidhub/internal/domain/models"
	"vidhub/internal/lib/logger/sl"
	"vidhub/internal/middleware"
	"vidhub/internal/storage"
	"vidhub/internal/transport/http/dto/request"
	"vidhub/internal/transport/http/response"

	tokenservice "vidhub/internal/services/token_service"
	userservice "vidhub/internal/services/user_service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type UserService interface {
	Register(ctx context.Context, input userservice.RegisterInput) (models.Identity, error)
	Login(ctx context.Context, identifier, password string) (models.Identity, *models.TokenPair, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (models.Identity, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email *string) (models.Identity, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatar *multipart.FileHeader) (models.Identity, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, coverImage *multipart.FileHeader) (models.Identity, error)
	ChannelProfile(ctx context.Context, username string, viewerID uuid.UUID) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID uuid.UUID) ([]models.WatchHistoryItem, error)
	RecordWatchEvent(ctx context.Context, userID, videoID uuid.UUID) error
}

type TokenService interface {
	Refresh(ctx context.Context, presented string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type Routers struct {
	log           *slog.Logger
	UserService   UserService
	TokenService  TokenService
	secureCookies bool
	refreshTTL    time.Duration
	accessTTL     time.Duration
}

func NewRouter(log *slog.Logger, userService UserService, tokenService TokenService, secureCookies bool, accessTTL, refreshTTL time.Duration) *Routers {
	return &Routers{
		log:           log,
		UserService:   userService,
		TokenService:  tokenService,
		secureCookies: secureCookies,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Register handles the multipart signup form: text fields plus a required
// avatar file and an optional cover image.
func (r *Routers) Register(c echo.Context) error {
	const op = "http.routers.Register"

	log := r.log.With(
		slog.String("op", op),
	)

	username := c.FormValue("username")
	email := c.FormValue("email")
	fullName := c.FormValue("fullName")
	password := c.FormValue("password")

	if username == "" || email == "" || fullName == "" || password == "" {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "All fields are required"))
	}

	avatar, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Avatar file is required"))
	}

	var coverImage *multipart.FileHeader
	if f, err := c.FormFile("coverImage"); err == nil {
		coverImage = f
	}

	identity, err := r.UserService.Register(c.Request().Context(), userservice.RegisterInput{
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   password,
		Avatar:     avatar,
		CoverImage: coverImage,
	})
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrUserExists):
			log.Warn("user already exists", slog.String("username", username))
			return c.JSON(http.StatusConflict,
				response.Error(http.StatusConflict, "User with email or username already exists"))
		case errors.Is(err, storage.ErrFileRequired):
			return c.JSON(http.StatusBadRequest,
				response.Error(http.StatusBadRequest, "Avatar file is required"))
		case errors.Is(err, storage.ErrFileTooLarge):
			return c.JSON(http.StatusBadRequest,
				response.Error(http.StatusBadRequest, "Uploaded file is too large"))
		default:
			log.Error("registration failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	log.Info("user registered", slog.String("user_id", identity.ID.String()))

	return c.JSON(http.StatusCreated,
		response.OK(http.StatusCreated, identity, "User registered successfully"))
}

func (r *Routers) Login(c echo.Context) error {
	const op = "http.routers.Login"

	log := r.log.With(
		slog.String("op", op),
	)

	var req request.LoginRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Invalid request format"))
	}

	if err := c.Validate(req); err != nil {
		log.Warn("invalid login request", slog.String("identifier", req.Identifier))
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Username or email is required", err.Error()))
	}

	identity, pair, err := r.UserService.Login(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrUserNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "User does not exist"))
		case errors.Is(err, userservice.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized,
				response.Error(http.StatusUnauthorized, "Invalid user credentials"))
		default:
			log.Error("login failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	r.setSessionCookies(c, pair)

	return c.JSON(http.StatusOK, response.OK(http.StatusOK, echo.Map{
		"user":          identity,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "User logged in successfully"))
}

// Refresh rotates the session: the incoming refresh token may arrive in the
// refreshToken cookie or in the request body.
func (r *Routers) Refresh(c echo.Context) error {
	const op = "http.routers.Refresh"

	log := r.log.With(
		slog.String("op", op),
	)

	presented := ""
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req request.RefreshRequest
		if err := c.Bind(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	if presented == "" {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	pair, err := r.TokenService.Refresh(c.Request().Context(), presented)
	if err != nil {
		switch {
		case errors.Is(err, tokenservice.ErrTokenReused):
			log.Warn("stale refresh token presented")
			return c.JSON(http.StatusUnauthorized,
				response.Error(http.StatusUnauthorized, "Refresh token is expired or used"))
		case errors.Is(err, tokenservice.ErrInvalidToken):
			return c.JSON(http.StatusUnauthorized,
				response.Error(http.StatusUnauthorized, "Invalid refresh token"))
		default:
			log.Error("refresh failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	r.setSessionCookies(c, pair)

	return c.JSON(http.StatusOK, response.OK(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "Access token refreshed"))
}

func (r *Routers) Logout(c echo.Context) error {
	const op = "http.routers.Logout"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	if err := r.TokenService.Logout(c.Request().Context(), identity.ID); err != nil {
		log.Error("logout failed", sl.Err(err))
		return r.internalError(c)
	}

	r.clearSessionCookies(c)

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, nil, "User logged out"))
}

// CurrentUser re-reads the account instead of echoing the gate's cached
// snapshot, so a just-updated profile is visible immediately.
func (r *Routers) CurrentUser(c echo.Context) error {
	const op = "http.routers.CurrentUser"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	fresh, err := r.UserService.CurrentUser(c.Request().Context(), identity.ID)
	if err != nil {
		if errors.Is(err, userservice.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "User does not exist"))
		}
		log.Error("current user fetch failed", sl.Err(err))
		return r.internalError(c)
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, fresh, "User fetched successfully"))
}

func (r *Routers) ChangePassword(c echo.Context) error {
	const op = "http.routers.ChangePassword"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	var req request.ChangePasswordRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Invalid request format"))
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Old and new passwords are required", err.Error()))
	}

	err := r.UserService.ChangePassword(c.Request().Context(), identity.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrInvalidCredentials):
			return c.JSON(http.StatusBadRequest,
				response.Error(http.StatusBadRequest, "Invalid old password"))
		case errors.Is(err, userservice.ErrUserNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "User does not exist"))
		default:
			log.Error("password change failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, nil, "Password changed successfully"))
}

func (r *Routers) UpdateAccount(c echo.Context) error {
	const op = "http.routers.UpdateAccount"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	var req request.UpdateAccountRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Invalid request format"))
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Invalid account fields", err.Error()))
	}

	updated, err := r.UserService.UpdateAccount(c.Request().Context(), identity.ID, req.FullName, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrNothingToUpdate):
			return c.JSON(http.StatusBadRequest,
				response.Error(http.StatusBadRequest, "At least one field is required"))
		case errors.Is(err, userservice.ErrUserExists):
			return c.JSON(http.StatusConflict,
				response.Error(http.StatusConflict, "Email is already taken"))
		case errors.Is(err, userservice.ErrUserNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "User does not exist"))
		default:
			log.Error("account update failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, updated, "Account details updated successfully"))
}

func (r *Routers) UpdateAvatar(c echo.Context) error {
	return r.updateImage(c, "avatar", "Avatar image updated successfully", r.UserService.UpdateAvatar)
}

func (r *Routers) UpdateCoverImage(c echo.Context) error {
	return r.updateImage(c, "coverImage", "Cover image updated successfully", r.UserService.UpdateCoverImage)
}

func (r *Routers) updateImage(
	c echo.Context,
	field, message string,
	update func(ctx context.Context, userID uuid.UUID, file *multipart.FileHeader) (models.Identity, error),
) error {
	const op = "http.routers.updateImage"

	log := r.log.With(
		slog.String("op", op),
		slog.String("field", field),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	file, err := c.FormFile(field)
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Image file is required"))
	}

	updated, err := update(c.Request().Context(), identity.ID, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			return c.JSON(http.StatusBadRequest,
				response.Error(http.StatusBadRequest, "Uploaded file is too large"))
		case errors.Is(err, userservice.ErrUserNotFound):
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "User does not exist"))
		default:
			log.Error("image update failed", sl.Err(err))
			return r.internalError(c)
		}
	}

	return c.JSON(http.StatusOK, response.OK(http.StatusOK, updated, message))
}

func (r *Routers) ChannelProfile(c echo.Context) error {
	const op = "http.routers.ChannelProfile"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	username := c.Param("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Username is missing"))
	}

	profile, err := r.UserService.ChannelProfile(c.Request().Context(), username, identity.ID)
	if err != nil {
		if errors.Is(err, userservice.ErrChannelNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "Channel does not exist"))
		}
		log.Error("channel profile fetch failed", sl.Err(err))
		return r.internalError(c)
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, profile, "User channel fetched successfully"))
}

func (r *Routers) WatchHistory(c echo.Context) error {
	const op = "http.routers.WatchHistory"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	items, err := r.UserService.WatchHistory(c.Request().Context(), identity.ID)
	if err != nil {
		log.Error("watch history fetch failed", sl.Err(err))
		return r.internalError(c)
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, items, "Watch history fetched successfully"))
}

func (r *Routers) RecordWatchEvent(c echo.Context) error {
	const op = "http.routers.RecordWatchEvent"

	log := r.log.With(
		slog.String("op", op),
	)

	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized,
			response.Error(http.StatusUnauthorized, "Unauthorized request"))
	}

	videoID, err := uuid.Parse(c.Param("videoId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			response.Error(http.StatusBadRequest, "Invalid video ID format"))
	}

	if err := r.UserService.RecordWatchEvent(c.Request().Context(), identity.ID, videoID); err != nil {
		if errors.Is(err, userservice.ErrVideoNotFound) {
			return c.JSON(http.StatusNotFound,
				response.Error(http.StatusNotFound, "Video does not exist"))
		}
		log.Error("watch event record failed", sl.Err(err))
		return r.internalError(c)
	}

	return c.JSON(http.StatusOK,
		response.OK(http.StatusOK, nil, "Watch event recorded"))
}

func (r *Routers) internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError,
		response.Error(http.StatusInternalServerError, "Internal server error"))
}

func (r *Routers) setSessionCookies(c echo.Context, pair *models.TokenPair) {
	c.SetCookie(r.sessionCookie(accessTokenCookie, pair.AccessToken, r.accessTTL))
	c.SetCookie(r.sessionCookie(refreshTokenCookie, pair.RefreshToken, r.refreshTTL))
}

func (r *Routers) clearSessionCookies(c echo.Context) {
	c.SetCookie(r.sessionCookie(accessTokenCookie, "", -time.Hour))
	c.SetCookie(r.sessionCookie(refreshTokenCookie, "", -time.Hour))
}

func (r *Routers) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}
