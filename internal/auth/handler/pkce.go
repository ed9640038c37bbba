package handler

import (
	"crypto/sha256"
	"encoding/base64"

	"socialregistration/internal/utils"

	"github.com/gin-gonic/gin"
)

const pkceCookieName = "__openid_pkce"

func (h *Handler) generatePKCE(c *gin.Context) (verifier string, challenge string, err error) {
	verifier, err = utils.RandomString(32)
	if err != nil {
		return "", "", err
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])

	h.setFlowCookie(c, pkceCookieName, verifier)

	return verifier, challenge, nil
}

func getPKCEVerifier(c *gin.Context) string {
	return flowCookie(c, pkceCookieName)
}
