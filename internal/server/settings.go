package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesxbt/internal/state"
	"tradesxbt/models"
)

func (s *Server) settingsRoutes(api *gin.RouterGroup) {
	theme := s.svc.Theme
	prefs := s.svc.Preferences

	api.GET("/theme", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"settings": theme.Settings(),
			"isDark":   theme.IsDark(c.Query("system_dark") == "true"),
		})
	})
	api.PUT("/theme", func(c *gin.Context) {
		var req struct {
			Theme       *state.Theme       `json:"theme"`
			ColorScheme *state.ColorScheme `json:"colorScheme"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		ctx := c.Request.Context()
		if req.Theme != nil {
			if err := theme.SetTheme(ctx, *req.Theme); err != nil {
				fail(c, http.StatusBadRequest, err)
				return
			}
		}
		if req.ColorScheme != nil {
			if err := theme.SetColorScheme(ctx, *req.ColorScheme); err != nil {
				fail(c, http.StatusBadRequest, err)
				return
			}
		}
		c.JSON(http.StatusOK, theme.Settings())
	})

	api.GET("/preferences/search-history", func(c *gin.Context) {
		c.JSON(http.StatusOK, prefs.SearchHistory())
	})
	api.POST("/preferences/search-history", func(c *gin.Context) {
		var req models.CoinSearchResult
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if req.ID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}
		c.JSON(http.StatusOK, prefs.RecordSearch(c.Request.Context(), req))
	})
	api.DELETE("/preferences/search-history", func(c *gin.Context) {
		prefs.ClearSearchHistory(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	api.GET("/preferences/email", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": prefs.RememberedEmail()})
	})
	api.PUT("/preferences/email", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"omitempty,email"`
			Remember bool   `json:"remember"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		prefs.SetRememberedEmail(c.Request.Context(), req.Email, req.Remember)
		c.JSON(http.StatusOK, gin.H{"email": prefs.RememberedEmail()})
	})
}
