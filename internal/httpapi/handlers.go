package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"citizen-engagement/internal/auth"
	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/projection"
	"citizen-engagement/internal/workflow"
	"citizen-engagement/pkg/logger"

	"github.com/gin-gonic/gin"
)

// IssueService is the workflow surface the handlers need.
type IssueService interface {
	Apply(ctx context.Context, issueID, actorID string, cmd workflow.Command) (projection.Issue, error)
	Get(ctx context.Context, issueID string) (projection.Issue, error)
	Exists(ctx context.Context, issueID string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Issues IssueService
	// Auth is only needed by DevToken.
	Auth *auth.Manager
}

const ctxIssueID = "issue_id"

// ResolveIssue rejects requests whose :id does not name an existing issue
// before any handler runs.
func (h Handlers) ResolveIssue() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "issue not found"})
			return
		}
		if err := h.Issues.Exists(requestContext(c), id); err != nil {
			if errors.Is(err, issues.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "issue not found"})
				return
			}
			writeError(c, err)
			return
		}
		c.Set(ctxIssueID, id)
		c.Next()
	}
}

// --- Issues ---

type actionRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PostAction runs one workflow action and returns the fresh projection.
func (h Handlers) PostAction(c *gin.Context) {
	actorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cmd, err := workflow.ParseCommand(req.Type, req.Payload)
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := h.Issues.Apply(requestContext(c), c.GetString(ctxIssueID), actorID, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h Handlers) GetIssue(c *gin.Context) {
	view, err := h.Issues.Get(requestContext(c), c.GetString(ctxIssueID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// --- Auth ---

type devTokenRequest struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// DevToken issues a JWT token pair without checking credentials.
//
// NOTE: Only registered outside production. Tokens are minted by the identity
// service in real deployments; the workflow re-reads roles from the user store.
func (h Handlers) DevToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || len(req.Roles) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, roles required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Roles)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// requestContext carries the request-scoped logger into the service layer.
func requestContext(c *gin.Context) context.Context {
	return logger.With(c.Request.Context(), logger.FromGin(c))
}
