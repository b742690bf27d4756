package main

import (
	"context"
	"embed"
	"encoding/gob"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/accounts"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/cache"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/configuration"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/home"
	internalmodels "github.com/adampresley/imagecaptioning/cmd/website/internal/models"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/viewstate"
	"github.com/adampresley/imagecaptioning/pkg/database"
	"github.com/adampresley/imagecaptioning/pkg/identity"
	"github.com/adampresley/imagecaptioning/pkg/logging"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/adampresley/imagecaptioning/pkg/services"
	"github.com/rfberaldo/sqlz"
)

var (
	Version string = "development"
	appName string = "imagecaptioning"

	//go:embed app
	appFS embed.FS

	config configuration.Config

	/* Services */
	accountService         services.AccountServicer
	archiveService         services.ArchiveServicer
	authSessionService     services.AuthSessionServicer
	captionService         services.CaptionServicer
	captionWorkflowService services.CaptionWorkflowServicer
	cleanupService         services.CleanupServicer
	db                     *sqlz.DB
	emailService           services.EmailServicer
	galleryCache           cache.GalleryCacher
	googleProvider         *identity.GoogleProvider
	identityService        services.IdentityService
	imageStoreService      services.ImageStoreService
	oauthStateSession      sessions.Session[*internalmodels.OAuthState]
	previewService         services.PreviewServicer
	renderer               rendering.TemplateRenderer
	sessionService         sessions.Session[*models.AuthSession]
	viewStates             *viewstate.Store

	/* Controllers */
	accountsController accounts.AccountsHandlers
	homeController     home.HomeHandlers
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("awsEndpointUrl", config.AwsEndpointUrl),
		slog.String("awsRegion", config.AwsRegion),
		slog.String("captionServiceUrl", config.CaptionServiceURL),
		slog.Bool("googleSignIn", config.GoogleClientID != ""),
		slog.Bool("welcomeEmail", config.EmailApiKey != ""),
	)

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())

	/*
	 * Setup services
	 */
	if db, err = database.Connect(config.DSN); err != nil {
		panic(err)
	}

	if err = database.Migrate(db); err != nil {
		panic(err)
	}

	gob.Register(&models.AuthSession{})
	gob.Register(&internalmodels.OAuthState{})

	cookieStore := sessions.NewCookieStore(config.CookieSecret)
	sessionService = sessions.NewSessionWrapper[*models.AuthSession](cookieStore, "imagecaptioning", "auth")
	oauthStateSession = sessions.NewSessionWrapper[*internalmodels.OAuthState](cookieStore, "imagecaptioningoauth", "state")

	awsConfig := &awsconfig.Config{
		Endpoint:        config.AwsEndpointUrl,
		Region:          config.AwsRegion,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	s3Client, err := s3.NewClient(awsConfig)

	if err != nil {
		panic(err)
	}

	renderer, err = rendering.NewGoTemplateRenderer(rendering.GoTemplateRendererConfig{
		TemplateDir:       "app",
		TemplateExtension: ".html",
		TemplateFS:        appFS,
		PagesDir:          "pages",
	})

	if err != nil {
		panic(err)
	}

	accountService = services.NewAccountService(services.AccountServiceConfig{
		DB: db,
	})

	authSessionService = services.NewAuthSessionService(services.AuthSessionServiceConfig{
		DB: db,
	})

	identityService = services.NewIdentityService(services.IdentityServiceConfig{
		AccountService:     accountService,
		AuthSessionService: authSessionService,
		SessionTTL:         time.Duration(config.SessionTTLHours) * time.Hour,
	})

	googleProvider = identity.NewGoogleProvider(identity.GoogleProviderConfig{
		ClientID:     config.GoogleClientID,
		ClientSecret: config.GoogleClientSecret,
		RedirectURL:  config.GoogleRedirectURL,
	})

	imageStoreService = services.NewImageStoreService(services.ImageStoreServiceConfig{
		AwsRegion:   config.AwsRegion,
		Bucket:      config.AwsBucket,
		ImageFolder: config.ImageFolder,
		S3Client:    s3Client,
	})

	if err = imageStoreService.EnsureBucketExists(); err != nil {
		slog.Error("error ensuring bucket exists", "bucket", config.AwsBucket, "error", err)
	}

	captionService = services.NewCaptionService(services.CaptionServiceConfig{
		BaseURL: config.CaptionServiceURL,
		Timeout: time.Duration(config.CaptionTimeout) * time.Second,
	})

	captionWorkflowService = services.NewCaptionWorkflowService(services.CaptionWorkflowServiceConfig{
		CaptionService: captionService,
		ImageStore:     imageStoreService,
	})

	archiveService = services.NewArchiveService(services.ArchiveServiceConfig{
		Source: imageStoreService,
	})

	emailService = services.NewEmailService(services.EmailServiceConfig{
		ApiKey:    config.EmailApiKey,
		FromEmail: config.EmailFromAddress,
		FromName:  config.EmailFromName,
		SiteURL:   config.SiteURL,
	})

	previewService = services.NewPreviewService(services.PreviewServiceConfig{})
	viewStates = viewstate.NewStore()

	galleryCache = cache.NewGalleryCache(cache.GalleryCacheConfig{
		AwsBucket:       config.AwsBucket,
		ImageStore:      imageStoreService,
		MaxCacheWorkers: 4,
		PreviewService:  previewService,
		S3Client:        s3Client,
		ShutdownCtx:     shutdownCtx,
	})

	cleanupService = services.NewCleanupService(services.CleanupServiceConfig{
		AuthSessionService: authSessionService,
		IdleTimeout:        time.Duration(config.IdleStateMinutes) * time.Minute,
		StatePruner:        viewStates,
	})

	/*
	 * Setup controllers
	 */
	accountsController = accounts.NewAccountsController(accounts.AccountsControllerConfig{
		GoogleProvider:    googleProvider,
		OAuthStateSession: oauthStateSession,
		Renderer:          renderer,
		SignedOutListener: viewStates,
		WelcomeMailer:     emailService,
	})

	homeController = home.NewHomeController(home.HomeControllerConfig{
		ArchiveService:  archiveService,
		MaxUploadBytes:  int64(config.MaxUploadMB) << 20,
		PreviewService:  previewService,
		Renderer:        renderer,
		StateStore:      viewStates,
		StoredImages:    galleryCache,
		WorkflowService: captionWorkflowService,
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	sessionGateMiddleware := newSessionGateMiddleware(
		identityService,
		sessionService,
		[]string{
			"/static",
			"/heartbeat",
		},
	)

	gated := []mux.MiddlewareFunc{sessionGateMiddleware}

	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "GET /{$}", HandlerFunc: accountsController.LoginPage, Middlewares: gated},
		{Path: "GET /login", HandlerFunc: accountsController.LoginPage, Middlewares: gated},
		{Path: "POST /login", HandlerFunc: accountsController.LoginAction, Middlewares: gated},
		{Path: "GET /signup", HandlerFunc: accountsController.SignupPage, Middlewares: gated},
		{Path: "POST /signup", HandlerFunc: accountsController.SignupAction, Middlewares: gated},
		{Path: "GET /auth/google", HandlerFunc: accountsController.GoogleStart, Middlewares: gated},
		{Path: "GET /auth/google/callback", HandlerFunc: accountsController.GoogleCallback, Middlewares: gated},
		{Path: "GET /logout", HandlerFunc: accountsController.LogoutAction, Middlewares: gated},
		{Path: "GET /home", HandlerFunc: homeController.HomePage, Middlewares: gated},
		{Path: "POST /home/image", HandlerFunc: homeController.SelectImage, Middlewares: gated},
		{Path: "POST /home/image/remove", HandlerFunc: homeController.RemoveImage, Middlewares: gated},
		{Path: "GET /home/image/preview", HandlerFunc: homeController.Preview, Middlewares: gated},
		{Path: "POST /home/caption", HandlerFunc: homeController.GenerateCaption, Middlewares: gated},
		{Path: "POST /home/caption/next", HandlerFunc: homeController.NextCaption, Middlewares: gated},
		{Path: "GET /home/images/download", HandlerFunc: homeController.DownloadImages, Middlewares: gated},
		{Path: "POST /home/caption/autocycle", HandlerFunc: homeController.ToggleAutoCycle, Middlewares: gated},
	}

	routerConfig := mux.RouterConfig{
		Address:              config.Host,
		Debug:                Version == "development",
		ServeStaticContent:   true,
		StaticContentRootDir: "app",
		StaticContentPrefix:  "/static/",
		StaticFS:             appFS,
		HttpWriteTimeout:     120,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	/*
	 * Start the session and view state cleanup job
	 */
	cleanupService.StartCleanupRoutine(time.Duration(config.CleanupInterval) * time.Minute)
	defer cleanupService.StopCleanupRoutine()

	/*
	 * Start the gallery thumbnail job
	 */
	setupGalleryCache(shutdownCtx)

	/*
	 * Wait for graceful shutdown
	 */
	slog.Info("server started")

	<-quit

	cancel()
	mux.Shutdown(httpServer)
	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

func setupLogger(config *configuration.Config, version string) {
	logging.Setup(config.LogLevel, appName, version)
}

func setupGalleryCache(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		galleryCache.CreateCache()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				galleryCache.CreateCache()
			}
		}
	}()
}
