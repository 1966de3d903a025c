package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutri-planner/app"
	"nutri-planner/auth"
)

const oauthStateCookie = "oauthstate"

func GoogleLogin(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Google == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		state := auth.GenerateState()
		c.SetCookie(oauthStateCookie, state, 3600, "/", "", c.Request.TLS != nil, true)
		c.Redirect(http.StatusTemporaryRedirect, s.Google.AuthURL(state))
	}
}

// GoogleCallback finishes the OAuth dance and hands the session token to
// the first allowed origin.
func GoogleCallback(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Google == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Google sign-in is not configured"})
			return
		}
		cookie, err := c.Cookie(oauthStateCookie)
		if err != nil || cookie == "" || c.Query("state") != cookie {
			s.Log.Warn("oauth state mismatch")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
			return
		}
		c.SetCookie(oauthStateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

		session, err := s.Google.SignIn(c.Request.Context(), c.Query("code"))
		if err != nil {
			s.Log.Error("google sign-in failed", zap.Error(err))
			respondError(c, s.Log, err)
			return
		}
		resp, err := newSessionResponse(s, session)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}

		if len(s.Config.AllowedOrigins) == 0 {
			c.JSON(http.StatusOK, resp)
			return
		}
		target := s.Config.AllowedOrigins[0] + "/auth/callback?" + url.Values{
			"token":    {resp.Token},
			"redirect": {string(resp.Redirect)},
		}.Encode()
		c.Redirect(http.StatusTemporaryRedirect, target)
	}
}
