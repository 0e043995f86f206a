package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/upb/portal-auth/middleware"
	"github.com/upb/portal-auth/services"
	"github.com/upb/portal-auth/services/auth"
	"github.com/upb/portal-auth/utils"
	"go.uber.org/zap"
)

// maxBodyBytes caps account request bodies
const maxBodyBytes = 1 << 20

// LoginFailedMessage is the single message returned for any credential mismatch
const LoginFailedMessage = "Please Check the Login Credentials - Invalid Username/Password was Entered"

// AccountService defines the account operations served over HTTP
type AccountService interface {
	// Register creates an account with the default role
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error)

	// Login exchanges credentials for an access token
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)

	// Roles lists the role catalog
	Roles(ctx context.Context) ([]string, error)
}

// LoginErrorResponse is the body of a failed login
type LoginErrorResponse struct {
	LoginError string `json:"loginError"`
}

// CurrentAccountResponse describes the caller behind a bearer token
type CurrentAccountResponse struct {
	Username  string    `json:"username"`
	AccountID string    `json:"accountId"`
	Role      string    `json:"role,omitempty"`
	TokenID   string    `json:"tokenId"`
	LoggedOn  string    `json:"loggedOn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RolesResponse lists the role catalog
type RolesResponse struct {
	Roles []string `json:"roles"`
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	service AccountService
	logger  *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRegister handles POST /account/register
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleLogin handles POST /account/login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		if services.IsUnauthorizedError(err) {
			_ = utils.WriteJSON(w, http.StatusUnauthorized, LoginErrorResponse{LoginError: LoginFailedMessage})
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleMe handles GET /account/me
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, services.ErrUnauthorized.Message)
		return
	}

	_ = utils.WriteOK(w, CurrentAccountResponse{
		Username:  claims.Sub,
		AccountID: claims.AccountID,
		Role:      claims.Role,
		TokenID:   claims.Jti,
		LoggedOn:  claims.LoggedOn,
		ExpiresAt: time.Unix(claims.Exp, 0).UTC(),
	})
}

// HandleListRoles handles GET /roles
func (h *AccountHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.Roles(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, RolesResponse{Roles: roles})
}

// decode reads a JSON body into dst, writing a 400 and returning false on failure
func (h *AccountHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "The request body is not valid JSON."
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "A non-empty request body is required."
		case errors.As(err, &maxErr):
			msg = "The request body is too large."
		}
		h.logger.Debug("failed to decode request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteErrorList(w, http.StatusBadRequest, []string{msg})
		return false
	}
	return true
}
