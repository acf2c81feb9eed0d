package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"laundry-dispatch/internal/config"
	"laundry-dispatch/internal/middleware"
	"laundry-dispatch/internal/models"
	"laundry-dispatch/internal/modules/assignments"
	"laundry-dispatch/internal/modules/orders"
	"laundry-dispatch/internal/modules/payments"
	"laundry-dispatch/internal/modules/users"
	"laundry-dispatch/pkg/gateway"
	"laundry-dispatch/pkg/notify"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Users
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, cfg.JWTSecret)
	userHandler := users.NewHandler(userSvc)

	// Notification sink. SES is optional; without a sender the machine
	// still runs with notifications disabled.
	var sink notify.Sink = notify.NoopSink{}
	if cfg.SESSender != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		sink = notify.NewSESSink(sesv2.NewFromConfig(awsCfg), cfg.SESSender, userSvc.EmailFor)
	}

	// Orders
	orderRepo := orders.NewRepository(pool)
	machine := orders.NewMachine(orderRepo, sink)
	orderSvc := orders.NewService(orderRepo, machine)
	orderHandler := orders.NewHandler(orderSvc)

	// Assignments
	window := assignments.WindowConfig{
		EarlyStart: cfg.AssignmentEarlyStart,
		LateStart:  cfg.AssignmentLateStart,
	}
	assignRepo := assignments.NewRepository(pool)
	assignSvc := assignments.NewService(assignRepo, machine, userSvc, window)
	assignHandler := assignments.NewHandler(assignSvc)

	// Payments
	gw := gateway.NewStripeClient(cfg.StripeAPIKey)
	paymentRepo := payments.NewRepository(pool)
	paymentSvc := payments.NewService(paymentRepo, gw, cfg.Currency)
	paymentHandler := payments.NewHandler(paymentSvc)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	api.POST("/auth/login", userHandler.Login)

	auth := api.Group("", middleware.JWT(cfg.JWTSecret))

	staff := []string{models.RoleAdmin, models.RoleSuperAdmin}

	// Orders
	auth.POST("/orders", orderHandler.CreateOrder)
	auth.GET("/orders", orderHandler.ListMyOrders)
	auth.GET("/orders/all", orderHandler.ListAllOrders, middleware.RequireRole(staff...))
	auth.GET("/orders/:orderId", orderHandler.GetOrderDetails)
	auth.DELETE("/orders/:orderId", orderHandler.CancelOrder)
	auth.POST("/orders/:orderId/transition", orderHandler.Transition, middleware.RequireRole(staff...))
	auth.PATCH("/orders/:orderId/invoice", orderHandler.SetInvoiceTotal, middleware.RequireRole(staff...))
	auth.GET("/orders/:orderId/history", orderHandler.GetHistory, middleware.RequireRole(staff...))

	// Driver assignments
	auth.POST("/assignments", assignHandler.Create, middleware.RequireRole(staff...))
	auth.GET("/assignments", assignHandler.ListMine, middleware.RequireRole(models.RoleDriver))
	auth.GET("/assignments/:assignmentId", assignHandler.Get)
	auth.PATCH("/assignments/:assignmentId", assignHandler.Advance, middleware.RequireRole(models.RoleDriver))
	auth.DELETE("/assignments/:assignmentId", assignHandler.Cancel, middleware.RequireRole(staff...))
	auth.POST("/assignments/:assignmentId/reassign", assignHandler.Reassign, middleware.RequireRole(staff...))
	auth.GET("/orders/:orderId/assignments", assignHandler.ListByOrder, middleware.RequireRole(staff...))

	// Payments and wallet
	auth.POST("/orders/:orderId/pay", paymentHandler.PayOrder)
	auth.GET("/orders/:orderId/payments", paymentHandler.ListOrderPayments, middleware.RequireRole(staff...))
	auth.POST("/payments/:paymentId/refund", paymentHandler.Refund, middleware.RequireRole(models.RoleSuperAdmin))
	auth.GET("/wallet", paymentHandler.GetMyWallet)
	auth.POST("/wallet/topup", paymentHandler.TopUp)
	auth.GET("/wallet/transactions", paymentHandler.ListMyWalletTransactions)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
