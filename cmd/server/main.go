package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/eligify/eligify/internal/config"
	"github.com/eligify/eligify/internal/handlers"
	"github.com/eligify/eligify/internal/middleware"
	"github.com/eligify/eligify/internal/repository"
	"github.com/eligify/eligify/internal/service"
	"github.com/eligify/eligify/internal/workflow"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dynamoClient, err := initDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	customerRepo := repository.NewCustomerRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	orderRepo := repository.NewOrderRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	// Initialize services
	tokenService, err := service.NewTokenService(&cfg.JWT, redisClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize token service")
	}

	otpService := service.NewOTPService(redisClient, &cfg.OTP, logger)
	verificationService := service.NewVerificationService(otpService, customerRepo, logger)
	eligibilityService := service.NewEligibilityService(customerRepo, &cfg.Eligibility, logger)
	orderService := service.NewOrderService(orderRepo, customerRepo, &cfg.Order, logger)

	controller := workflow.NewController(
		sessionRepo,
		verificationService,
		eligibilityService,
		orderService,
		workflow.NewClock(),
		workflow.Options{
			AdvanceDelay:   cfg.Workflow.AdvanceDelay,
			ResendCooldown: cfg.OTP.ResendCooldown,
			MinIncome:      cfg.Eligibility.MinIncome,
		},
		logger,
	)

	authHandlers := handlers.NewAuthHandlers(otpService, tokenService, logger)
	workflowHandlers := handlers.NewWorkflowHandlers(controller, logger)
	orderHandlers := handlers.NewOrderHandlers(orderService, logger)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, logger)
	router := setupRouter(authHandlers, workflowHandlers, orderHandlers, authMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	workflowHandlers *handlers.WorkflowHandlers,
	orderHandlers *handlers.OrderHandlers,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/mobile-verification", authHandlers.MobileVerification).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp-verify", authHandlers.OTPVerify).Methods("POST", "OPTIONS")

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.HandleFunc("/logout", authHandlers.Logout).Methods("POST", "OPTIONS")

	eligibility := api.PathPrefix("/eligibility").Subrouter()
	eligibility.Use(authMiddleware.RequireAuth)
	eligibility.HandleFunc("/send-otp", workflowHandlers.SendOTP).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/verify-otp", workflowHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/resend-otp", workflowHandlers.ResendOTP).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/check", workflowHandlers.CheckEligibility).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/create-order", workflowHandlers.CreateOrder).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/session", workflowHandlers.GetSession).Methods("GET", "OPTIONS")
	eligibility.HandleFunc("/back", workflowHandlers.Back).Methods("POST", "OPTIONS")
	eligibility.HandleFunc("/reset", workflowHandlers.Reset).Methods("POST", "OPTIONS")

	orders := api.PathPrefix("/orders").Subrouter()
	orders.Use(authMiddleware.RequireAuth)
	orders.HandleFunc("", orderHandlers.List).Methods("GET", "OPTIONS")
	orders.HandleFunc("/search", orderHandlers.Search).Methods("GET", "OPTIONS")
	orders.HandleFunc("/status-counts", orderHandlers.StatusCounts).Methods("GET", "OPTIONS")
	orders.HandleFunc("/{id}/complete", orderHandlers.Complete).Methods("PUT", "OPTIONS")

	return router
}
