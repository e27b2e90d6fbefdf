package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) socialRoutes(api *gin.RouterGroup) {
	soc := s.svc.Social

	api.GET("/social", func(c *gin.Context) {
		c.JSON(http.StatusOK, soc.Snapshot())
	})
	api.GET("/social/search", func(c *gin.Context) {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
			return
		}
		snap := soc.SearchTwitter(c.Request.Context(), q)
		status := http.StatusOK
		if snap.Error != "" {
			status = http.StatusBadGateway
		}
		c.JSON(status, snap)
	})
	api.GET("/tokens/:id/tweets", func(c *gin.Context) {
		c.JSON(http.StatusOK, soc.TokenTweets(c.Request.Context(), c.Param("id")))
	})
	api.GET("/tokens/:id/news", func(c *gin.Context) {
		c.JSON(http.StatusOK, soc.TokenNews(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 10)))
	})
}
