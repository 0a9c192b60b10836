package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"slices"
	_ "time/tzdata" // APP_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.SetPrefix("life-dashboard-api: ")

	// .env is optional; in production the environment is set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := getDBPool(context.Background(), cfg.DBURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	h := newHandler(pool, cfg)
	router := gin.Default()
	router.SetTrustedProxies(nil)
	router.Use(cors(cfg.AllowedOrigins))
	h.registerRoutes(router)

	log.Printf("listening on :%s (timezone %s)", cfg.Port, cfg.Location)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

// cors allows browser requests from the configured origins and answers
// preflight requests.
func cors(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
