package main

import (
	"fintrack/internal/domain/misasync"
	"fintrack/internal/domain/providerconfig"
	"fintrack/internal/infrastructure/crypto"
	"fintrack/internal/infrastructure/misa"
	"fintrack/internal/infrastructure/postgres"
	httphandlers "fintrack/internal/interfaces/http"
	"fintrack/internal/shared/auth"
	"fintrack/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	AuthHandler           *httphandlers.AuthHandler
	UserHandler           *httphandlers.UserHandler
	ProviderConfigHandler *httphandlers.ProviderConfigHandler
	MisaHandler           *httphandlers.MisaHandler
	FinanceHandler        *httphandlers.FinanceHandler

	// Auth
	JWT *auth.JWT

	// For the scheduler
	ProviderStore      *providerconfig.Store
	ProviderConfigRepo *postgres.ProviderConfigRepository
	IncomeSyncService  *misasync.IncomeSyncService
	ExpenseSyncService *misasync.ExpenseSyncService
	NewMisaClient      func() misa.ClientInterface
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	incomeRepo := postgres.NewIncomeRepository(db)
	expenseRepo := postgres.NewExpenseRepository(db)
	providerConfigRepo := postgres.NewProviderConfigRepository(db)

	// Domain services
	providerStore := providerconfig.NewStore(providerConfigRepo, encryptor)
	incomeSync := misasync.NewIncomeSyncService(incomeRepo)
	expenseSync := misasync.NewExpenseSyncService(expenseRepo)

	// One client per logical session: tokens are instance-scoped, so the
	// factory hands every caller a fresh client.
	misaClientConfig := misa.Config{
		AuthURL:     cfg.Misa.AuthURL,
		BusinessURL: cfg.Misa.BusinessURL,
		Timeout:     cfg.Misa.RequestTimeout,
	}
	newMisaClient := func() misa.ClientInterface {
		return misa.NewClient(misaClientConfig)
	}

	// Auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)
	googleOAuth := auth.NewGoogleOAuthProvider(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.CallbackURL,
	)

	// Handlers
	authHandler := httphandlers.NewAuthHandler(userRepo, googleOAuth, jwt, cfg.TLS.Enabled)
	userHandler := httphandlers.NewUserHandler(userRepo)
	providerConfigHandler := httphandlers.NewProviderConfigHandler(providerStore, newMisaClient)
	misaHandler := httphandlers.NewMisaHandler(providerStore, newMisaClient, incomeSync, expenseSync)
	financeHandler := httphandlers.NewFinanceHandler(incomeRepo, expenseRepo)

	return &Dependencies{
		DB:                    db,
		AuthHandler:           authHandler,
		UserHandler:           userHandler,
		ProviderConfigHandler: providerConfigHandler,
		MisaHandler:           misaHandler,
		FinanceHandler:        financeHandler,
		JWT:                   jwt,
		ProviderStore:         providerStore,
		ProviderConfigRepo:    providerConfigRepo,
		IncomeSyncService:     incomeSync,
		ExpenseSyncService:    expenseSync,
		NewMisaClient:         newMisaClient,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
