package main

import (
	"context"
	"fmt"
	"log" // standard log for errors before zap is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathima-sithara/account-service/internal/brevo"
	"github.com/fathima-sithara/account-service/internal/config"
	"github.com/fathima-sithara/account-service/internal/database"
	"github.com/fathima-sithara/account-service/internal/handlers"
	"github.com/fathima-sithara/account-service/internal/notify"
	"github.com/fathima-sithara/account-service/internal/reaper"
	"github.com/fathima-sithara/account-service/internal/repository"
	"github.com/fathima-sithara/account-service/internal/server"
	"github.com/fathima-sithara/account-service/internal/services"
	"github.com/fathima-sithara/account-service/internal/token"
	"github.com/fathima-sithara/account-service/internal/twilio"
	"github.com/fathima-sithara/account-service/internal/utils"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables:", err)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := utils.NewLogger(cfg.App.Env)
	defer func() {
		_ = logger.Sync()
	}()
	sugar := logger.Sugar()
	sugar.Infof("Starting account-service in %s environment on port %d", cfg.App.Env, cfg.App.Port)

	db, mongoClient, err := database.ConnectMongo(cfg.Mongo.URI, cfg.Mongo.Database, sugar)
	if err != nil {
		sugar.Fatal(err)
	}

	mail := brevo.NewClient(cfg.Brevo.APIKey, cfg.Brevo.SenderEmail, cfg.Brevo.SenderName)
	if !mail.IsConfigured() {
		sugar.Warn("Brevo client not fully configured. Email delivery will fail.")
	}
	sms := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
	if !sms.IsConfigured() {
		sugar.Warn("Twilio client not fully configured. SMS delivery will fail.")
	}

	userRepo := repository.NewMongoUserRepo(db, cfg.User.Collection)
	tokens := token.NewManager(cfg.App.JWT.Secret, time.Duration(cfg.App.JWT.ExpireDays)*24*time.Hour)
	gateway := notify.NewGateway(mail, sms, sugar)
	authSvc := services.NewAuthService(
		userRepo,
		gateway,
		tokens,
		cfg.App.FrontendURL,
		time.Duration(cfg.Security.OtpTTLMinutes)*time.Minute,
		time.Duration(cfg.Security.ResetTTLMinutes)*time.Minute,
		cfg.Security.MaxUnverifiedRecords,
		sugar,
	)
	h := handlers.NewHandler(authSvc, tokens, cfg.App.Env != "development", logger)
	app := server.New(cfg, h, logger)

	// The reaper owns its own cancellation handle, tied to process lifecycle.
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	sweeper := reaper.New(
		userRepo,
		time.Duration(cfg.Reaper.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Reaper.MaxAgeMinutes)*time.Minute,
		sugar,
	)
	go sweeper.Run(reaperCtx)

	go func() {
		listenAddr := fmt.Sprintf(":%d", cfg.App.Port)
		sugar.Infof("Server listening on %s", listenAddr)
		if err := app.Listen(listenAddr); err != nil {
			sugar.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")

	stopReaper()

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := app.ShutdownWithContext(ctxShut); err != nil {
		sugar.Errorf("Fiber app shutdown error: %v", err)
	}
	if err := mongoClient.Disconnect(ctxShut); err != nil {
		sugar.Errorf("MongoDB disconnect error: %v", err)
	}

	sugar.Info("Graceful shutdown complete. Goodbye!")
}
