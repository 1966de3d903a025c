package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutri-planner/app"
	"nutri-planner/auth"
	"nutri-planner/models"
)

type sessionResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Redirect  auth.Page   `json:"redirect"`
}

func newSessionResponse(s *app.State, session *models.Session) (*sessionResponse, error) {
	token, err := s.Tokens.Issue(*session)
	if err != nil {
		return nil, err
	}
	return &sessionResponse{
		Token:     token,
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
		Redirect:  auth.DashboardFor(session.User.Role),
	}, nil
}

func Register(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name     string      `json:"name"`
			Email    string      `json:"email"`
			Password string      `json:"password"`
			Role     models.Role `json:"role"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		user, err := s.Auth.Register(c.Request.Context(), body.Name, body.Email, body.Password, body.Role)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "redirect": auth.PageLogin})
	}
}

func Login(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&creds); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		session, err := s.Auth.Login(c.Request.Context(), creds.Email, creds.Password)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		resp, err := newSessionResponse(s, session)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func Logout(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFrom(c)
		if err := s.Auth.EndSession(c.Request.Context(), user.ID, auth.SessionIDFrom(c)); err != nil {
			respondError(c, s.Log, err)
			return
		}
		s.Log.Info("logged out", zap.String("user_id", user.ID))
		c.JSON(http.StatusOK, gin.H{"redirect": auth.PageLogin})
	}
}

func Me(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": user, "dashboard": auth.DashboardFor(user.Role)})
	}
}

func UpdateProfile(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		user, err := s.Auth.UpdateProfile(c.Request.Context(), auth.UserFrom(c).ID, body.Name, body.Email)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func ChangePassword(s *app.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "Invalid input")
			return
		}
		err := s.Auth.ChangePasswordFor(c.Request.Context(), auth.UserFrom(c).ID, body.OldPassword, body.NewPassword)
		if err != nil {
			respondError(c, s.Log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}
