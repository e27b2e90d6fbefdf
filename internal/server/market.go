package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tradesxbt/internal/chain"
	"tradesxbt/internal/coingecko"
	"tradesxbt/models"
)

func (s *Server) marketRoutes(api *gin.RouterGroup) {
	api.GET("/market", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.svc.Market.Snapshot())
	})
	api.POST("/market/refresh", func(c *gin.Context) {
		err := s.svc.Market.Refresh(c.Request.Context())
		snap := s.svc.Market.Snapshot()
		if err != nil && snap.Error != "" {
			c.JSON(http.StatusBadGateway, snap)
			return
		}
		c.JSON(http.StatusOK, snap)
	})
	api.PUT("/market/token", func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		s.svc.Market.SetSelectedToken(req.Token)
		c.JSON(http.StatusOK, s.svc.Market.Snapshot())
	})
	api.PUT("/market/timeframe", func(c *gin.Context) {
		var req struct {
			Timeframe models.Timeframe `json:"timeframe" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		if err := s.svc.Market.SetSelectedTimeframe(req.Timeframe); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, s.svc.Market.Snapshot())
	})
	api.GET("/market/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"coins": s.svc.Market.SearchTokens(c.Request.Context(), c.Query("q"))})
	})

	api.GET("/address/:address", func(c *gin.Context) {
		blockchain := chain.Detect(c.Param("address"))
		c.JSON(http.StatusOK, gin.H{"blockchain": blockchain, "valid": blockchain != chain.Unknown})
	})

	s.coinRoutes(api)
}

// coinRoutes expose the market-data wrapper directly for chart and detail
// views.
func (s *Server) coinRoutes(api *gin.RouterGroup) {
	cg := s.svc.CoinGecko

	api.GET("/coins/markets", func(c *gin.Context) {
		q := coingecko.MarketsQuery{
			Currency: c.DefaultQuery("vs_currency", "usd"),
			Order:    c.Query("order"),
			Limit:    queryInt(c, "per_page", 100),
			Category: c.Query("category"),
		}
		if ids := c.Query("ids"); ids != "" {
			q.IDs = strings.Split(ids, ",")
		}
		c.JSON(http.StatusOK, cg.GetCoinsMarketData(c.Request.Context(), q))
	})
	api.GET("/coins/:id", func(c *gin.Context) {
		details, err := cg.GetCoinDetails(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		c.JSON(http.StatusOK, details)
	})
	api.GET("/coins/:id/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetHistoricalMarketData(c.Request.Context(), c.Param("id"), c.DefaultQuery("days", "7"), c.Query("interval")))
	})
	api.GET("/coins/:id/ohlc", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetOHLC(c.Request.Context(), c.Param("id"), queryInt(c, "days", 7)))
	})
	api.GET("/coins/:id/range", func(c *gin.Context) {
		from, _ := strconv.ParseInt(c.Query("from"), 10, 64)
		to, _ := strconv.ParseInt(c.Query("to"), 10, 64)
		c.JSON(http.StatusOK, cg.GetMarketChartRange(c.Request.Context(), c.Param("id"), c.DefaultQuery("vs_currency", "usd"), from, to))
	})
	api.GET("/coins/:id/developer", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetDeveloperData(c.Request.Context(), c.Param("id")))
	})
	api.GET("/coins/:id/repos", func(c *gin.Context) {
		repos, err := cg.GetRepoStats(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		c.JSON(http.StatusOK, repos)
	})
	api.GET("/coins/:id/status", func(c *gin.Context) {
		updates, err := cg.GetStatusUpdates(c.Request.Context(), c.Param("id"), queryInt(c, "page", 1), queryInt(c, "per_page", 10))
		if err != nil {
			fail(c, http.StatusBadGateway, err)
			return
		}
		c.JSON(http.StatusOK, updates)
	})
	api.GET("/coins/:id/volume", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetVolumeVolatility(c.Request.Context(), c.Param("id")))
	})
	api.GET("/global", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetGlobalData(c.Request.Context()))
	})
	api.GET("/global/chart", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetGlobalMarketChart(c.Request.Context(), queryInt(c, "days", 30)))
	})
	api.GET("/trending", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetTrending(c.Request.Context()))
	})
	api.GET("/movers", func(c *gin.Context) {
		tf := models.Timeframe(c.DefaultQuery("duration", string(models.Timeframe24h)))
		if !tf.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "duration must be one of 1h, 24h, 7d"})
			return
		}
		c.JSON(http.StatusOK, cg.GetTopGainersLosers(c.Request.Context(), c.DefaultQuery("vs_currency", "usd"), tf, queryInt(c, "limit", 10)))
	})
	api.GET("/exchanges/:id/volume", func(c *gin.Context) {
		c.JSON(http.StatusOK, cg.GetExchangeVolumeChart(c.Request.Context(), c.Param("id"), queryInt(c, "days", 30)))
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
