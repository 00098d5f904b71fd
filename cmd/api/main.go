package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
	appmw "github.com/hivetime/timebank/internal/middleware"

	// handlers
	admin "github.com/hivetime/timebank/internal/admin"
	auth "github.com/hivetime/timebank/internal/auth"
	market "github.com/hivetime/timebank/internal/marketplace"
	messaging "github.com/hivetime/timebank/internal/messaging"
	progress "github.com/hivetime/timebank/internal/progress"
	reports "github.com/hivetime/timebank/internal/reports"
	user "github.com/hivetime/timebank/internal/user"
	w "github.com/hivetime/timebank/internal/wallet"
)

func main() {
	_ = godotenv.Load()

	// Init subsystems
	db.Init()
	alerts.Init()
	defer alerts.Close()
	if err := alerts.ConfigureMailerFromEnv(); err != nil {
		log.Printf("mailer not configured: %v", err)
	}

	progress.StartSweeper(context.Background())

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ready", func(c echo.Context) error {
		if err := db.Conn.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Public auth routes, rate limited against brute force
	authLimiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(5))
	e.POST("/signup", auth.Signup, authLimiter)
	e.POST("/login", auth.Login, authLimiter)
	e.POST("/password-reset/request", auth.RequestPasswordReset, authLimiter)
	e.POST("/password-reset/confirm", auth.ResetPassword, authLimiter)
	e.GET("/user/:id/profile", user.GetPublicProfile)
	e.GET("/marketplace/services", market.GetAllServices) // public discovery

	// Authenticated group
	g := e.Group("")
	g.Use(appmw.JWTMiddleware)

	// Me and profile update
	g.GET("/me", auth.Me)
	g.PATCH("/user/profile", user.UpdateProfile)

	// Time balance
	g.GET("/wallet/balance", w.Balance)
	g.GET("/wallet/transactions", w.Transactions)

	// Marketplace services
	g.POST("/marketplace/services", market.CreateService)
	g.GET("/marketplace/services/me", market.GetUserServices)
	g.GET("/marketplace/services/:id", market.GetService)
	g.POST("/marketplace/services/:id/cancel", market.CancelService)

	// Applications
	g.POST("/marketplace/services/:id/apply", market.Apply)
	g.GET("/marketplace/services/:id/applications", market.GetServiceApplications)
	g.GET("/marketplace/applications", market.GetUserApplications)
	g.POST("/marketplace/applications/:id/withdraw", market.WithdrawApplication)
	g.POST("/marketplace/applications/:id/accept", market.AcceptApplication)
	g.POST("/marketplace/applications/:id/reject", market.RejectApplication)

	// Progress workflow
	g.GET("/progress", progress.GetUserProgress)
	g.GET("/progress/:id", progress.GetProgress)
	g.POST("/progress/:id/schedule", progress.ProposeSchedule)
	g.POST("/progress/:id/schedule/:message_id/respond", progress.RespondToSchedule)
	g.DELETE("/progress/:id/schedule/:message_id", progress.CancelProposal)
	g.POST("/progress/:id/confirm-start", progress.ConfirmStart)
	g.POST("/progress/:id/finish", progress.MarkFinished)
	g.POST("/progress/:id/survey", progress.SubmitSurvey)

	// Messaging threads (keyed by application)
	g.POST("/threads/:id/messages", messaging.SendMessage)
	g.GET("/threads/:id/messages", messaging.ListMessages)
	g.GET("/threads/:id/unread", messaging.UnreadCount)
	g.POST("/threads/:id/messages/:message_id/read", messaging.MarkMessageRead)
	g.GET("/threads/:id/ws", messaging.ThreadWS)

	// Notifications
	g.GET("/notifications", alerts.ListNotifications)
	g.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	// Reports
	g.POST("/reports", reports.ReportIssue)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(appmw.JWTMiddleware)
	adminGroup.Use(appmw.AdminGuard)
	adminGroup.GET("/stats", admin.Stats)
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.POST("/users/:id/suspend", admin.SuspendUser)
	adminGroup.POST("/users/:id/activate", admin.ActivateUser)
	adminGroup.GET("/reports", reports.ListReports)
	adminGroup.POST("/reports/:id/resolve", reports.ResolveReport)
	adminGroup.POST("/progress/sweep", progress.SweepExpired)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("API server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
