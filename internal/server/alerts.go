package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesxbt/models"
)

func (s *Server) alertRoutes(api *gin.RouterGroup) {
	a := s.svc.Alerts

	api.GET("/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Alerts())
	})
	api.POST("/alerts", func(c *gin.Context) {
		var req models.NewAlert
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusCreated, a.AddAlert(c.Request.Context(), req))
	})
	api.PATCH("/alerts/:id", func(c *gin.Context) {
		var req models.AlertUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if req.Condition != nil && !req.Condition.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid alert condition"})
			return
		}
		alert, ok := a.UpdateAlert(c.Request.Context(), c.Param("id"), req)
		if !ok {
			notFound(c, "alert")
			return
		}
		c.JSON(http.StatusOK, alert)
	})
	api.DELETE("/alerts/:id", func(c *gin.Context) {
		if !a.DeleteAlert(c.Request.Context(), c.Param("id")) {
			notFound(c, "alert")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.POST("/alerts/:id/trigger", func(c *gin.Context) {
		alert, ok := a.TriggerAlert(c.Request.Context(), c.Param("id"))
		if !ok {
			notFound(c, "alert")
			return
		}
		c.JSON(http.StatusOK, alert)
	})

	api.GET("/notifications", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"notifications": a.Notifications(),
			"unreadCount":   a.UnreadCount(),
		})
	})
	api.POST("/notifications/read-all", func(c *gin.Context) {
		a.MarkAllNotificationsRead(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	api.POST("/notifications/:id/read", func(c *gin.Context) {
		if !a.MarkNotificationRead(c.Request.Context(), c.Param("id")) {
			notFound(c, "notification")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.DELETE("/notifications/:id", func(c *gin.Context) {
		if !a.DeleteNotification(c.Request.Context(), c.Param("id")) {
			notFound(c, "notification")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.DELETE("/notifications", func(c *gin.Context) {
		a.DeleteAllNotifications(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
}
