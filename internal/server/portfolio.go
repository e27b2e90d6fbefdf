package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradesxbt/models"
)

func (s *Server) portfolioRoutes(api *gin.RouterGroup) {
	p := s.svc.Portfolio

	api.GET("/portfolio", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"assets":           p.Assets(),
			"transactions":     p.Transactions(),
			"summary":          p.Summary(),
			"isRealData":       p.IsRealData(),
			"isImporting":      p.IsImporting(),
			"connectedAddress": p.ConnectedAddress(),
			"version":          p.Version(),
		})
	})
	api.GET("/portfolio/allocations", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Allocations())
	})
	api.POST("/portfolio/assets", func(c *gin.Context) {
		var req models.NewAsset
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusCreated, p.AddAsset(c.Request.Context(), req))
	})
	api.PATCH("/portfolio/assets/:id", func(c *gin.Context) {
		var req models.AssetUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		asset, ok := p.UpdateAsset(c.Request.Context(), c.Param("id"), req)
		if !ok {
			notFound(c, "asset")
			return
		}
		c.JSON(http.StatusOK, asset)
	})
	api.PUT("/portfolio/assets/:id/price", func(c *gin.Context) {
		var req struct {
			Price float64 `json:"price" binding:"gte=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if !p.UpdateAssetPrice(c.Request.Context(), c.Param("id"), req.Price) {
			notFound(c, "asset")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.DELETE("/portfolio/assets/:id", func(c *gin.Context) {
		if !p.RemoveAsset(c.Request.Context(), c.Param("id")) {
			notFound(c, "asset")
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.POST("/portfolio/transactions", func(c *gin.Context) {
		var req models.NewTransaction
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		tx, err := p.AddTransaction(c.Request.Context(), req)
		if err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusCreated, tx)
	})
	api.POST("/portfolio/import", func(c *gin.Context) {
		var req struct {
			Address string `json:"address" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		res := p.ImportFromAddress(c.Request.Context(), req.Address)
		status := http.StatusOK
		if !res.Success {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, res)
	})
	api.DELETE("/portfolio/connection", func(c *gin.Context) {
		p.Disconnect(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	api.POST("/portfolio/refresh-prices", func(c *gin.Context) {
		if s.svc.Prices == nil {
			fail(c, http.StatusServiceUnavailable, errors.New("no exchange price source configured"))
			return
		}
		n, err := p.RefreshAndNotify(c.Request.Context(), s.svc.Prices, s.svc.PriceObserver())
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n, "summary": p.Summary()})
	})
}
