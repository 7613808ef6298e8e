package auth

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RouteOptions tunes the HTTP layer.
type RouteOptions struct {
	// UploadDir receives avatar files before they are handed to the uploader.
	UploadDir string
	// SecureCookies sets the Secure flag on session cookies.
	SecureCookies bool
}

// RegisterRoutes mounts account endpoints under /users.
func RegisterRoutes(router *gin.RouterGroup, service *Service, authenticator *Authenticator, opts RouteOptions) {
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	handler := &httpHandler{service: service, opts: opts}

	users := router.Group("/users")
	{
		users.POST("/register", handler.register)
		users.POST("/login", handler.login)
		users.POST("/refresh-token", handler.refreshToken)

		secured := users.Group("/")
		secured.Use(AuthMiddleware(authenticator))
		secured.POST("/logout", handler.logout)
		secured.POST("/change-password", handler.changePassword)
		secured.GET("/current-user", handler.currentUser)
		secured.PATCH("/update-account", handler.updateAccount)
		secured.PATCH("/avatar", handler.updateAvatar)
	}
}

type httpHandler struct {
	service *Service
	opts    RouteOptions
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Fullname  string     `json:"fullname"`
	AvatarURL string     `json:"avatar"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type tokensResponse struct {
	AccessToken        string `json:"accessToken"`
	AccessTokenExpiry  int64  `json:"accessTokenExpiresAt"`
	RefreshToken       string `json:"refreshToken"`
	RefreshTokenExpiry int64  `json:"refreshTokenExpiresAt"`
}

type loginResponse struct {
	User userResponse `json:"user"`
	tokensResponse
}

func (h *httpHandler) register(c *gin.Context) {
	avatarPath, cleanup, err := h.saveUpload(c, "avatar")
	if err != nil {
		writeError(c, &Error{Kind: ErrInternal, Message: "failed to receive avatar", Err: err})
		return
	}
	defer cleanup()

	user, err := h.service.Register(c.Request.Context(), RegisterInput{
		Fullname:   c.PostForm("fullname"),
		Email:      c.PostForm("email"),
		Username:   c.PostForm("username"),
		Password:   c.PostForm("password"),
		AvatarPath: avatarPath,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": marshalUser(user)})
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newError(ErrValidation, "malformed request body"))
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)
	c.JSON(http.StatusOK, loginResponse{
		User:           marshalUser(result.User),
		tokensResponse: marshalTokens(result.Tokens),
	})
}

func (h *httpHandler) refreshToken(c *gin.Context) {
	presented, _ := c.Cookie(RefreshTokenCookie)
	if presented == "" {
		var req refreshRequest
		// an absent body is reported by Rotate as an unauthorized request
		_ = c.ShouldBindJSON(&req)
		presented = req.RefreshToken
	}

	tokens, err := h.service.Rotate(c.Request.Context(), presented)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setSessionCookies(c, tokens)
	c.JSON(http.StatusOK, marshalTokens(tokens))
}

func (h *httpHandler) logout(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, newError(ErrTokenMissing, "unauthorized request"))
		return
	}

	if err := h.service.Logout(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "user logged out"})
}

func (h *httpHandler) changePassword(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, newError(ErrTokenMissing, "unauthorized request"))
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newError(ErrValidation, "malformed request body"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *httpHandler) currentUser(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, newError(ErrTokenMissing, "unauthorized request"))
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": marshalUser(user)})
}

func (h *httpHandler) updateAccount(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, newError(ErrTokenMissing, "unauthorized request"))
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, newError(ErrValidation, "malformed request body"))
		return
	}

	user, err := h.service.UpdateAccount(c.Request.Context(), userID, req.Fullname, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": marshalUser(user)})
}

func (h *httpHandler) updateAvatar(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, newError(ErrTokenMissing, "unauthorized request"))
		return
	}

	avatarPath, cleanup, err := h.saveUpload(c, "avatar")
	if err != nil {
		writeError(c, &Error{Kind: ErrInternal, Message: "failed to receive avatar", Err: err})
		return
	}
	defer cleanup()

	user, err := h.service.UpdateAvatar(c.Request.Context(), userID, avatarPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": marshalUser(user)})
}

// saveUpload stores the named multipart file in the upload dir. A missing
// file yields an empty path so the service can report the dependency error.
func (h *httpHandler) saveUpload(c *gin.Context, field string) (string, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", noop, nil
	}

	dst := filepath.Join(h.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
		return "", noop, err
	}
	return dst, func() { _ = os.Remove(dst) }, nil
}

// setSessionCookies sizes each cookie by its token lifetime so browsers drop
// it when the token expires.
func (h *httpHandler) setSessionCookies(c *gin.Context, tokens TokenPair) {
	accessTTL, refreshTTL := h.service.SessionTTLs()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, tokens.AccessToken, maxAge(accessTTL), "/", "", h.opts.SecureCookies, true)
	c.SetCookie(RefreshTokenCookie, tokens.RefreshToken, maxAge(refreshTTL), "/", "", h.opts.SecureCookies, true)
}

func (h *httpHandler) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", h.opts.SecureCookies, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", h.opts.SecureCookies, true)
}

func maxAge(ttl time.Duration) int {
	seconds := int(ttl.Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}

func marshalUser(user User) userResponse {
	resp := userResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Fullname:  user.Fullname,
		AvatarURL: user.AvatarURL,
	}
	if !user.CreatedAt.IsZero() {
		created := user.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	if !user.UpdatedAt.IsZero() {
		updated := user.UpdatedAt.UTC()
		resp.UpdatedAt = &updated
	}
	return resp
}

func marshalTokens(tokens TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:        tokens.AccessToken,
		AccessTokenExpiry:  tokens.AccessTokenExpiry.Unix(),
		RefreshToken:       tokens.RefreshToken,
		RefreshTokenExpiry: tokens.RefreshTokenExpiry.Unix(),
	}
}

// statusFor maps an error kind to its HTTP status and wire name.
func statusFor(err error) (int, string) {
	switch KindOf(err) {
	case ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case ErrConflict:
		return http.StatusConflict, "conflict"
	case ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case ErrNotFound:
		return http.StatusNotFound, "not_found"
	case ErrDependency:
		return http.StatusBadRequest, "dependency_error"
	case ErrTokenMissing:
		return http.StatusUnauthorized, "token_missing"
	case ErrTokenInvalid:
		return http.StatusUnauthorized, "token_invalid"
	case ErrTokenStale:
		return http.StatusUnauthorized, "token_stale"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorBody(err error) (int, gin.H) {
	status, kind := statusFor(err)
	return status, gin.H{"error": gin.H{"kind": kind, "message": Message(err)}}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := errorBody(err)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := errorBody(err)
	c.AbortWithStatusJSON(status, body)
}
