package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"segbridge/database"
	"segbridge/models"
)

// InitAPIToken generates a fresh API token, persists only its bcrypt hash in
// the settings table, and returns the plaintext. The plaintext is shown once
// and never stored.
func InitAPIToken() (string, error) {
	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	if err := database.SetSetting(models.SettingAPITokenHash, string(hash)); err != nil {
		return "", fmt.Errorf("failed to store token hash: %w", err)
	}
	log.Println("auth: API token hash stored")
	return token, nil
}

// AuthRequired returns a middleware that enforces bearer-token auth whenever
// a token hash is stored. Without a stored hash the API stays open, matching
// a loopback-only default deployment. Health stays reachable for probes.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/api/health" {
			c.Next()
			return
		}

		hash, exists, err := database.GetSetting(models.SettingAPITokenHash)
		if err != nil {
			fail(c, http.StatusInternalServerError, CodeInternal, "Failed to load auth settings", err.Error())
			c.Abort()
			return
		}
		if !exists || hash == "" {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "Missing bearer token", nil)
			c.Abort()
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "Invalid token", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
