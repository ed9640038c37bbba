package handler

import (
	"errors"
	"net/http"

	"socialregistration/internal/auth/account"
	"socialregistration/internal/auth/credentials"
	"socialregistration/internal/auth/staging"
	"socialregistration/internal/logger"
	"socialregistration/internal/metrics"
	"socialregistration/internal/validation"
	"socialregistration/internal/view"

	"github.com/gin-gonic/gin"
)

type setupForm struct {
	Username string `form:"username" validate:"required,username"`
	Email    string `form:"email" validate:"omitempty,email,max=254"`
	Password string `form:"password" validate:"omitempty,password"`
}

// setup lets a user with a staged identity pick a username and commits
// the account.
func (h *Handler) setup(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	pending, err := staging.Load(sess)
	if errors.Is(err, staging.ErrNothingStaged) {
		logger.Warn("setup without staged identity", map[string]any{"ip": c.ClientIP()})
		c.Redirect(http.StatusFound, h.urls.Login)
		return
	}
	if err != nil {
		h.internalError(c, "load staged identity failed", err)
		return
	}

	if c.Request.Method != http.MethodPost {
		h.renderSetup(c, http.StatusOK, pending, setupForm{Email: pending.User.Email}, nil)
		return
	}

	var form setupForm
	if err := c.ShouldBind(&form); err != nil {
		h.metrics.Setup(metrics.SetupInvalid)
		h.renderSetup(c, http.StatusBadRequest, pending, form, nil)
		return
	}

	if err := h.validate.Validate(form); err != nil {
		var verrs *validation.Errors
		if !errors.As(err, &verrs) {
			h.internalError(c, "setup validation failed", err)
			return
		}
		h.metrics.Setup(metrics.SetupInvalid)
		h.renderSetup(c, http.StatusUnprocessableEntity, pending, form, verrs.Fields)
		return
	}

	var cred *credentials.Credential
	if form.Password != "" {
		cred, err = credentials.NewCredential(form.Password)
		if err != nil {
			h.metrics.Setup(metrics.SetupInvalid)
			h.renderSetup(c, http.StatusUnprocessableEntity, pending, form,
				validation.FieldError("password", err.Error()).Fields)
			return
		}
	}

	ctx := c.Request.Context()

	user := pending.User
	user.Username = form.Username
	user.Email = form.Email
	profile := pending.Profile

	err = h.accounts.Create(ctx, &user, &profile, cred)
	switch {
	case errors.Is(err, account.ErrUsernameTaken):
		h.metrics.Setup(metrics.SetupInvalid)
		h.renderSetup(c, http.StatusConflict, pending, form,
			validation.FieldError("username", "This username is already taken.").Fields)
		return
	case errors.Is(err, account.ErrProfileLinked):
		// linked by another request since it was staged
		staging.Clear(sess)
		h.metrics.Setup(metrics.SetupFailed)
		c.HTML(http.StatusConflict, view.Error, gin.H{
			"error": "This account is already linked. Please sign in again.",
		})
		return
	case err != nil:
		h.metrics.Setup(metrics.SetupFailed)
		h.internalError(c, "create account failed", err)
		return
	}

	if err := h.establish(c, sess, user.ID); err != nil {
		h.internalError(c, "session login failed", err)
		return
	}
	staging.Clear(sess)

	h.metrics.Setup(metrics.SetupCommitted)
	logger.Info("account created", map[string]any{
		"user_id":  user.ID.String(),
		"provider": profile.Provider,
		"password": cred != nil,
	})

	c.Redirect(http.StatusFound, h.next(c, sess))
}

func (h *Handler) renderSetup(c *gin.Context, status int, pending *staging.Pending, form setupForm, fieldErrors map[string]string) {
	if fieldErrors == nil {
		fieldErrors = map[string]string{}
	}

	data := gin.H{
		"provider": pending.Profile.Provider,
		"form":     form,
		"errors":   fieldErrors,
	}
	if len(fieldErrors) > 0 || status == http.StatusBadRequest {
		data["error"] = "Please correct the errors below."
	}

	c.HTML(status, view.Setup, data)
}
