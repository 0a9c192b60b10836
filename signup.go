package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"lg/life-dashboard-api/internal/identity"
	"lg/life-dashboard-api/internal/mailer"
)

/* ─── Service info ───────────────────────────────────────────────────── */

// GET /api/health
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "API is running"})
}

// GET /api/info
func (h *Handler) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "Life Dashboard API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"health": "/api/health",
			"info":   "/api/info",
			"auth":   "/api/auth",
		},
	})
}

/* ─── Signup and verification ────────────────────────────────────────── */

type signupRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// signup creates an inactive account and emails it a verification code.
// POST /api/auth/signup. An existing inactive account with the same email is
// updated in place and sent a new code; an active one is a validation error.
func (h *Handler) signup(c *gin.Context) {
	var body signupRequest
	if !bindJSON(c, &body) {
		return
	}
	if err := identity.CheckPassword(body.Password); err != nil {
		fieldErrors(c, map[string]string{"password": err.Error()})
		return
	}
	hash, err := identity.HashPassword(body.Password)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}

	existing, err := queryOne[user](h.db, c,
		"SELECT * FROM users WHERE lower(email) = lower(@email)",
		pgx.NamedArgs{"email": body.Email})
	switch {
	case err == nil && existing.IsActive:
		fieldErrors(c, map[string]string{"email": "a user with this email already exists"})
		return
	case err == nil:
		_, err = h.db.Exec(c,
			`UPDATE users SET first_name = @firstName, last_name = @lastName, password = @password
			 WHERE id = @id`,
			pgx.NamedArgs{"firstName": body.FirstName, "lastName": body.LastName, "password": hash, "id": existing.ID})
		if err != nil {
			log.Printf("[signup] update inactive user %d: %v", existing.ID, err)
			apiError(c, http.StatusInternalServerError, "failed to create account")
			return
		}
	case errors.Is(err, pgx.ErrNoRows):
		username, err := identity.DeriveUsername(c, body.Email, h.usernameTaken)
		if err != nil {
			apiError(c, http.StatusInternalServerError, "failed to create account")
			return
		}
		_, err = h.db.Exec(c,
			`INSERT INTO users (username, email, first_name, last_name, password, is_active)
			 VALUES (@username, @email, @firstName, @lastName, @password, false)`,
			pgx.NamedArgs{
				"username": username, "email": body.Email,
				"firstName": body.FirstName, "lastName": body.LastName, "password": hash,
			})
		if isUniqueViolation(err) {
			apiError(c, http.StatusConflict, "account already exists")
			return
		}
		if err != nil {
			log.Printf("[signup] insert user: %v", err)
			apiError(c, http.StatusInternalServerError, "failed to create account")
			return
		}
	default:
		apiError(c, http.StatusInternalServerError, "failed to create account")
		return
	}

	if err := h.sendVerificationCode(c, body.Email); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to generate verification code")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully. Please check your email for verification code.",
		"email":   body.Email,
	})
}

func (h *Handler) usernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := h.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = @username)",
		pgx.NamedArgs{"username": username}).Scan(&exists)
	return exists, err
}

// sendVerificationCode caches a fresh code for email and mails it. A delivery
// failure is logged and otherwise ignored; only code generation can fail.
func (h *Handler) sendVerificationCode(ctx context.Context, email string) error {
	code, err := identity.NewVerificationCode()
	if err != nil {
		log.Printf("[sendVerificationCode] %v", err)
		return err
	}
	h.codes.Set(identity.VerificationKey(email), code, identity.VerificationCodeTTLSeconds*time.Second)

	if err := h.mail.Send(ctx, email, mailer.VerificationSubject, mailer.VerificationBody(code)); err != nil {
		log.Printf("[sendVerificationCode] email to %s failed: %v", email, err)
	}
	return nil
}

// verifyEmail activates the account when the code matches.
// POST /api/auth/verify-email.
func (h *Handler) verifyEmail(c *gin.Context) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6,numeric"`
	}
	if !bindJSON(c, &body) {
		return
	}

	key := identity.VerificationKey(body.Email)
	cached, ok := h.codes.Get(key)
	if !ok {
		apiError(c, http.StatusBadRequest, "verification code expired or invalid")
		return
	}
	if cached != body.Code {
		apiError(c, http.StatusBadRequest, "invalid verification code")
		return
	}

	var userID int
	err := h.db.QueryRow(c,
		"UPDATE users SET is_active = true WHERE lower(email) = lower(@email) RETURNING id",
		pgx.NamedArgs{"email": body.Email}).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("[verifyEmail] %v", err)
		apiError(c, http.StatusInternalServerError, "failed to verify email")
		return
	}
	h.codes.Delete(key)

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully. You can now log in.", "user_id": userID})
}

// resendCode issues a new verification code for an inactive account.
// POST /api/auth/resend-code.
func (h *Handler) resendCode(c *gin.Context) {
	var body struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !bindJSON(c, &body) {
		return
	}

	u, err := queryOne[user](h.db, c,
		"SELECT * FROM users WHERE lower(email) = lower(@email)",
		pgx.NamedArgs{"email": body.Email})
	if errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if u.IsActive {
		apiError(c, http.StatusBadRequest, "email already verified")
		return
	}

	if err := h.sendVerificationCode(c, u.Email); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to generate verification code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code resent successfully."})
}

/* ─── Google sign-in ─────────────────────────────────────────────────── */

// googleAuth signs in with a Google access token, creating an active account
// on first use. POST /api/auth/google.
func (h *Handler) googleAuth(c *gin.Context) {
	var body struct {
		AccessToken string `json:"access_token" validate:"required"`
	}
	if !bindJSON(c, &body) {
		return
	}

	profile, err := h.google.FetchProfile(c, body.AccessToken)
	switch {
	case errors.Is(err, identity.ErrInvalidAccessToken):
		apiError(c, http.StatusBadRequest, "invalid access token")
		return
	case errors.Is(err, identity.ErrNoEmail):
		apiError(c, http.StatusBadRequest, "email not provided by google")
		return
	case err != nil:
		log.Printf("[googleAuth] userinfo: %v", err)
		apiError(c, http.StatusBadGateway, "failed to verify token with google")
		return
	}

	u, err := queryOne[user](h.db, c,
		`UPDATE users SET
			first_name = CASE WHEN first_name = '' THEN @firstName ELSE first_name END,
			last_name  = CASE WHEN last_name  = '' THEN @lastName  ELSE last_name  END,
			is_active  = true
		 WHERE lower(email) = lower(@email)
		 RETURNING *`,
		pgx.NamedArgs{"email": profile.Email, "firstName": profile.GivenName, "lastName": profile.FamilyName})
	if errors.Is(err, pgx.ErrNoRows) {
		username, derr := identity.DeriveUsername(c, profile.Email, h.usernameTaken)
		if derr != nil {
			apiError(c, http.StatusInternalServerError, "failed to create account")
			return
		}
		u, err = queryOne[user](h.db, c,
			`INSERT INTO users (username, email, first_name, last_name, is_active)
			 VALUES (@username, @email, @firstName, @lastName, true)
			 RETURNING *`,
			pgx.NamedArgs{
				"username": username, "email": profile.Email,
				"firstName": profile.GivenName, "lastName": profile.FamilyName,
			})
	}
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to sign in")
		return
	}

	token, err := h.ensureToken(c, u)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Authentication successful",
		"token":     token,
		"user":      userResponse(u),
		"google_id": profile.ID,
		"picture":   profile.Picture,
	})
}
