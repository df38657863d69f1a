package account

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Route paths served by the account API.
const (
	PathRegister = "/register"
	PathLogin    = "/login"
	PathUser     = "/user"
)

// Response is the envelope of every account API reply.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	User    *Profile `json:"user,omitempty"`
	Token   string   `json:"token,omitempty"`
}

// Handler exposes the Service over HTTP.
type Handler struct {
	svc    Service
	tokens *TokenIssuer
	log    *zap.Logger
}

// NewHandler creates the HTTP handlers for svc.
func NewHandler(svc Service, tokens *TokenIssuer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, tokens: tokens, log: log}
}

// NewEngine returns a gin engine serving the account routes.
func NewEngine(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(h.log))
	h.Mount(engine)
	return engine
}

// Mount registers the account routes on r.
func (h *Handler) Mount(r gin.IRouter) {
	r.POST(PathRegister, h.register)
	r.POST(PathLogin, h.login)

	user := r.Group(PathUser, h.requireToken)
	user.GET("/:email", h.getUser)
	user.PUT("/:email", h.updateUser)
	user.DELETE("/:email", h.deleteUser)
}

func (h *Handler) register(c *gin.Context) {
	var in NewAccount
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, Response{Message: "All fields are required"})
		return
	}

	profile, err := h.svc.CreateAccount(c.Request.Context(), in)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Success: true, User: &profile})
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Message: "All fields are required"})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, Response{Message: "Email is already registered"})
	default:
		h.serverError(c, "Error registering user", err)
	}
}

func (h *Handler) login(c *gin.Context) {
	var in Credentials
	if err := c.ShouldBindJSON(&in); err != nil || in.Email == "" || in.Password == "" {
		c.JSON(http.StatusBadRequest, Response{Message: "Email and Password are required"})
		return
	}

	profile, err := h.svc.ValidateCredentials(c.Request.Context(), in.Email, in.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Message: "Email and Password are required"})
		return
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, Response{Message: "Invalid email or password"})
		return
	default:
		h.serverError(c, "Server error", err)
		return
	}

	token, err := h.tokens.Issue(profile)
	if err != nil {
		h.serverError(c, "Server error", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, User: &profile, Token: token})
}

func (h *Handler) getUser(c *gin.Context) {
	profile, err := h.svc.FetchProfile(c.Request.Context(), c.Param("email"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Success: true, User: &profile})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Message: "User not found"})
	default:
		h.serverError(c, "Database query error", err)
	}
}

func (h *Handler) updateUser(c *gin.Context) {
	var upd ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, Response{Message: "All fields are required"})
		return
	}

	profile, err := h.svc.UpdateProfile(c.Request.Context(), c.Param("email"), upd)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Message: "All fields are required"})
		return
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Message: "User not found"})
		return
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, Response{Message: "Email is already registered"})
		return
	default:
		h.serverError(c, "Error updating user", err)
		return
	}

	// The token subject is the email, so a renamed account needs a new one.
	token, err := h.tokens.Issue(profile)
	if err != nil {
		h.serverError(c, "Error updating user", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "User information updated", User: &profile, Token: token})
}

func (h *Handler) deleteUser(c *gin.Context) {
	err := h.svc.DeleteProfile(c.Request.Context(), c.Param("email"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Success: true, Message: "User account deleted"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Message: "User not found"})
	default:
		h.serverError(c, "Error deleting user", err)
	}
}

// requireToken accepts only a bearer token whose subject is the account in
// the path.
func (h *Handler) requireToken(c *gin.Context) {
	authz := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Message: "Missing or invalid token"})
		return
	}

	claims, err := h.tokens.Parse(strings.TrimSpace(authz[len("bearer "):]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Message: "Missing or invalid token"})
		return
	}

	if !strings.EqualFold(claims.Subject, normalizeEmail(c.Param("email"))) {
		c.AbortWithStatusJSON(http.StatusForbidden, Response{Message: "Token does not match this account"})
		return
	}

	c.Next()
}

func (h *Handler) serverError(c *gin.Context, message string, err error) {
	h.log.Error(message, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{Message: message})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
