package handlers

import (
	"net/http"

	"userauth/internal/dto"
	"userauth/internal/logging"
	"userauth/internal/metrics"
	"userauth/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles register, login and profile.
type AuthHandler struct {
	userSvc *service.UserService
	log     logging.Logger
	metrics *metrics.Registry
}

// NewAuthHandler returns a new AuthHandler.
func NewAuthHandler(userSvc *service.UserService, log logging.Logger, m *metrics.Registry) *AuthHandler {
	return &AuthHandler{userSvc: userSvc, log: log.With("module", "auth_handler"), metrics: m}
}

// Register godoc
// @Summary      Register a user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.RegisterRequest  true  "New user"
// @Success      201   {object}  dto.UserEnvelope
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "Invalid request body")
		h.metrics.ObserveAuth(metrics.OpRegister, "invalid_input")
		return
	}
	user, err := h.userSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.metrics.ObserveAuth(metrics.OpRegister, respondError(c, h.log, registerRules, err))
		return
	}
	h.metrics.ObserveAuth(metrics.OpRegister, "ok")
	h.log.Info(c.Request.Context(), "user registered", "user_id", user.ID)
	c.JSON(http.StatusCreated, dto.UserEnvelope{
		Message: "User registered successfully",
		User:    dto.NewUserResponse(user),
	})
}

// Login godoc
// @Summary      Log in and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      dto.LoginRequest  true  "Credentials"
// @Success      200   {object}  dto.TokenEnvelope
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "Invalid request body")
		h.metrics.ObserveAuth(metrics.OpLogin, "invalid_input")
		return
	}
	token, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.ObserveAuth(metrics.OpLogin, respondError(c, h.log, loginRules, err))
		return
	}
	h.metrics.ObserveAuth(metrics.OpLogin, "ok")
	c.JSON(http.StatusOK, dto.TokenEnvelope{Message: "Login successful", Token: token})
}

// Profile godoc
// @Summary      Current user's profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.UserEnvelope
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := UserFromContext(c)
	if !ok {
		h.log.Error(c.Request.Context(), "profile route without RequireUser")
		abortWithMessage(c, http.StatusInternalServerError, msgInternal)
		return
	}
	h.metrics.ObserveAuth(metrics.OpProfile, "ok")
	c.JSON(http.StatusOK, dto.UserEnvelope{
		Message: "Profile accessed",
		User:    dto.NewUserResponse(user),
	})
}
