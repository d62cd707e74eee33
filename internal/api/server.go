package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/casa-rifa/raffle-api/docs"
	v1 "github.com/casa-rifa/raffle-api/internal/api/handler/v1"
	"github.com/casa-rifa/raffle-api/internal/api/middleware"
	"github.com/casa-rifa/raffle-api/internal/config"
	"github.com/casa-rifa/raffle-api/internal/gateway/mercadopago"
	"github.com/casa-rifa/raffle-api/internal/repository"
	"github.com/casa-rifa/raffle-api/internal/repository/dao"
	"github.com/casa-rifa/raffle-api/internal/selection"
	"github.com/casa-rifa/raffle-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	// Raffle and Payments are exposed so the caller can run their
	// background loops.
	Raffle   *service.RaffleService
	Payments *service.PaymentService
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	// The raffle service owns the selection store and the hold lifecycle,
	// so both the raffle and payment handlers share one instance.
	raffleSvc := s.initRaffleService(db)
	s.Raffle = raffleSvc
	uSvc := service.NewUserService(repository.NewUserRepository(dao.NewUserDAO(db)))

	authHandler := s.initAuthHandler(db)
	userHandler := v1.NewUserHandler(uSvc)
	raffleHandler := v1.NewRaffleHandler(raffleSvc, uSvc)
	paymentHandler := s.initPaymentHandler(raffleSvc, uSvc)
	s.MountHandlers(authHandler, userHandler, raffleHandler, paymentHandler)

	return s
}

func (s *Server) initRaffleService(db *gorm.DB) *service.RaffleService {
	ticketDAO := dao.NewTicketDAO(db)
	holdDAO := dao.NewHoldDAO(db)
	repo := repository.NewTicketRepository(ticketDAO, holdDAO)
	userRepo := repository.NewUserRepository(dao.NewUserDAO(db))

	return service.NewRaffleService(repo, userRepo, selection.NewStore(), s.Config.Raffle)
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initPaymentHandler(raffleSvc *service.RaffleService, uSvc *service.UserService) *v1.PaymentHandler {
	gateway := mercadopago.NewClient(s.Config.MercadoPago)
	svc := service.NewPaymentService(raffleSvc, gateway, s.Config.Raffle.SweepInterval)
	s.Payments = svc

	return v1.NewPaymentHandler(svc, uSvc)
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, raffleHandler *v1.RaffleHandler, paymentHandler *v1.PaymentHandler) {
	const basePath = "/api/v1"

	public := s.Router.Group(basePath)
	{
		public.POST("/auth/signup", authHandler.HandleSignup)
		public.POST("/auth/login", authHandler.HandleLogin)
		public.GET("/tickets", raffleHandler.HandleListTickets)
		public.GET("/tickets/counts", raffleHandler.HandleCounts)
		public.POST("/payments/webhook", paymentHandler.HandleWebhook)
	}

	authed := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		authed.GET("/users/:userID", userHandler.HandleGetUser)
		authed.GET("/users", userHandler.HandleListUsers)

		authed.GET("/selection", raffleHandler.HandleGetSelection)
		authed.DELETE("/selection", raffleHandler.HandleClearSelection)
		authed.POST("/selection/:number", raffleHandler.HandleSelect)
		authed.DELETE("/selection/:number", raffleHandler.HandleDeselect)
		authed.POST("/tickets/reserve", raffleHandler.HandleReserve)

		authed.POST("/payments", paymentHandler.HandleCheckout)
		authed.DELETE("/payments/:holdID", paymentHandler.HandleCancel)

		authed.PUT("/admin/tickets/:number/status", raffleHandler.HandleSetStatus)
		authed.PUT("/admin/tickets/:number/owner", raffleHandler.HandleAssignOwner)
		authed.POST("/admin/tickets/reset", raffleHandler.HandleReset)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Raffle API"
	docs.SwaggerInfo.Description = "Ticket sales API for a numbered raffle."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
