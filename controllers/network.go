package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Endpoint just pings the server
// @Description Returns a basic message
// @Tags test
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// @Summary Server public key
// @Description Returns the server's RSA public key (base64 X.509 SPKI) that clients seal requests with
// @Tags security
// @Produce json
// @Success 200 {object} object{public_key=string}
// @Failure 500 {object} object{error=string}
// @Router /public_key [get]
func PublicKey(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := s.Keys.PublicKeyBase64()
		if err != nil {
			s.internal(c, "export public key", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"public_key": key})
	}
}
