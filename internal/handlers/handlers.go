package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/liveness-check/internal/imagecodec"
	"github.com/example/liveness-check/internal/usecase"
	"github.com/example/liveness-check/web"
)

// errNoImage is the fixed payload returned whenever the image field is
// absent, regardless of anything else in the request.
const errNoImage = "No image data found"

type predictRequest struct {
	Image string `json:"image"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.LivenessUseCase) {
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexPage)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/predict", func(c *gin.Context) {
		var req predictRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Image == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": errNoImage})
			return
		}

		predictions, err := uc.Predict(c.Request.Context(), req.Image)
		if err != nil {
			if errors.Is(err, imagecodec.ErrMalformedPayload) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
			return
		}

		c.JSON(http.StatusOK, predictions)
	})
}
