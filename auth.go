package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lg/life-dashboard-api/internal/identity"
)

// login verifies email/password and returns the user's auth token, issuing
// one if the user has none.
// POST /api/auth/login (public, no auth required).
func (h *Handler) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	u, lookupErr := queryOne[user](h.db, c,
		"SELECT * FROM users WHERE lower(email) = lower(@email)",
		pgx.NamedArgs{"email": body.Email})

	// bcrypt runs even for unknown emails so timing does not reveal them.
	hash := ""
	if lookupErr == nil {
		hash = u.Password
	}
	matched := identity.ComparePassword(hash, body.Password)

	if lookupErr != nil || !matched {
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !u.IsActive {
		apiError(c, http.StatusForbidden, "account not verified")
		return
	}

	token, err := h.ensureToken(c, u)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(u)})
}

// ensureToken returns the user's auth token, storing a new one if unset.
func (h *Handler) ensureToken(c *gin.Context, u user) (string, error) {
	if u.AuthToken != nil && *u.AuthToken != "" {
		return *u.AuthToken, nil
	}
	var token string
	err := h.db.QueryRow(c,
		`UPDATE users SET auth_token = COALESCE(auth_token, @token)
		 WHERE id = @id RETURNING auth_token`,
		pgx.NamedArgs{"token": identity.NewToken(), "id": u.ID}).Scan(&token)
	if err != nil {
		log.Printf("[ensureToken] user %d: %v", u.ID, err)
		return "", err
	}
	return token, nil
}

// logout clears the caller's token; the next login issues a fresh one.
// POST /api/auth/logout.
func (h *Handler) logout(c *gin.Context) {
	userID := c.GetInt("user_id")
	if _, err := h.db.Exec(c,
		"UPDATE users SET auth_token = NULL WHERE id = @id",
		pgx.NamedArgs{"id": userID}); err != nil {
		log.Printf("[logout] user %d: %v", userID, err)
		apiError(c, http.StatusInternalServerError, "failed to log out")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// authMiddleware validates the Bearer token and sets user_id on the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		var userID int
		err := h.db.QueryRow(c,
			"SELECT id FROM users WHERE auth_token = $1 AND is_active", token).Scan(&userID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				log.Printf("[authMiddleware] token lookup: %v", err)
			}
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// ownerGuard rejects requests that name a user other than the authenticated
// one through an ownerField, either in the query string or at the top level of
// a JSON body. The acting user always comes from the token; a matching value
// is merely tolerated.
// ownerFields are the request keys that carry an owner id.
var ownerFields = []string{"user_id", "user"}

func ownerGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")

		for _, f := range ownerFields {
			if q, ok := c.GetQuery(f); ok && q != strconv.Itoa(userID) {
				apiError(c, http.StatusForbidden, f+" does not match the authenticated user")
				c.Abort()
				return
			}
		}

		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				apiError(c, http.StatusBadRequest, "invalid request body")
				c.Abort()
				return
			}
			// Restore the body for the handler's own binding.
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))

			var top map[string]json.RawMessage
			if json.Unmarshal(raw, &top) == nil {
				for _, f := range ownerFields {
					if v, ok := top[f]; ok && !sameUser(v, userID) {
						apiError(c, http.StatusForbidden, f+" does not match the authenticated user")
						c.Abort()
						return
					}
				}
			}
		}
		c.Next()
	}
}

// sameUser reports whether a JSON value (number or numeric string) is id.
func sameUser(v json.RawMessage, id int) bool {
	want := strconv.Itoa(id)
	if string(v) == want {
		return true
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s == want
	}
	var n float64
	if json.Unmarshal(v, &n) == nil {
		return n == float64(id)
	}
	return false
}

// userResponse is the public shape of a user in auth responses.
func userResponse(u user) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}
