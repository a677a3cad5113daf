package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Envelope is the body of every non-empty response
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes the page returned by the list endpoint
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PageLimits bounds the list endpoint's pageSize parameter
type PageLimits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// UserHandlers provides HTTP handlers for user operations
type UserHandlers struct {
	service UserService
	logger  *zap.Logger
	limits  PageLimits
}

// NewUserHandlers creates new user handlers
func NewUserHandlers(service UserService, logger *zap.Logger, limits PageLimits) *UserHandlers {
	if limits.DefaultPageSize <= 0 {
		limits.DefaultPageSize = 10
	}
	if limits.MaxPageSize < limits.DefaultPageSize {
		limits.MaxPageSize = limits.DefaultPageSize
	}
	return &UserHandlers{
		service: service,
		logger:  logger,
		limits:  limits,
	}
}

// RegisterRoutes registers all user routes under /users
func (h *UserHandlers) RegisterRoutes(router gin.IRouter) {
	users := router.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.GET("/search", h.SearchUsers)
		users.GET("/sort", h.SortUsers)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}

func (h *UserHandlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "create_user", err)
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "create_user", err)
		return
	}

	h.logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("request_id", c.GetString("request_id")))
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: user})
}

func (h *UserHandlers) UpdateUser(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.fail(c, "update_user", err)
		return
	}

	var req UpdateUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, "update_user", err)
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), userID, &req)
	if err != nil {
		h.fail(c, "update_user", err)
		return
	}

	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    user,
		Message: "User updated successfully",
	})
}

func (h *UserHandlers) DeleteUser(c *gin.Context) {
	userID, err := parseUserID(c)
	if err != nil {
		h.fail(c, "delete_user", err)
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), userID); err != nil {
		h.fail(c, "delete_user", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandlers) SearchUsers(c *gin.Context) {
	results, err := h.service.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, "search_users", err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Data: results})
}

func (h *UserHandlers) SortUsers(c *gin.Context) {
	order, err := ParseSortOrder(c.Query("order"))
	if err != nil {
		h.fail(c, "sort_users", err)
		return
	}

	sorted, err := h.service.SortUsers(c.Request.Context(), &SortRequest{
		Field: c.Query("field"),
		Order: order,
	})
	if err != nil {
		h.fail(c, "sort_users", err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Data: sorted})
}

func (h *UserHandlers) ListUsers(c *gin.Context) {
	req, err := h.parsePageRequest(c)
	if err != nil {
		h.fail(c, "list_users", err)
		return
	}

	page, err := h.service.ListUsers(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "list_users", err)
		return
	}

	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    page.Users,
		Pagination: &Pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	})
}

func (h *UserHandlers) parsePageRequest(c *gin.Context) (*PageRequest, error) {
	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		return nil, err
	}
	pageSize, err := positiveQueryInt(c, "pageSize", h.limits.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	if pageSize > h.limits.MaxPageSize {
		return nil, NewValidationError("pageSize", pageSize,
			"pageSize cannot exceed "+strconv.Itoa(h.limits.MaxPageSize))
	}
	return &PageRequest{Page: page, PageSize: pageSize}, nil
}

// bindJSON decodes the request body. A body over the size limit keeps its
// *http.MaxBytesError so it is not reported as malformed JSON.
func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return NewValidationError("body", nil, "invalid request body")
	}
	return nil
}

func positiveQueryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, NewValidationError(name, raw, name+" must be a positive integer")
	}
	return n, nil
}

func parseUserID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, NewValidationError("id", raw, "id must be a positive integer")
	}
	return id, nil
}

// fail maps err onto a status code and writes the error envelope
func (h *UserHandlers) fail(c *gin.Context, operation string, err error) {
	var validationErr *ValidationError
	var tooLarge *http.MaxBytesError

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
		message = "request body too large"
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Message
	case IsNotFound(err):
		status = http.StatusNotFound
		message = "user not found"
	case IsTimeout(err):
		status = http.StatusGatewayTimeout
		message = "request timed out"
	}

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int("status", status),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("User request failed", fields...)
	} else {
		h.logger.Info("User request rejected", fields...)
	}

	c.JSON(status, Envelope{Success: false, Error: message})
}
