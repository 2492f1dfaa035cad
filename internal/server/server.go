package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/globalping/backoffice/internal/adoption"
	adoptiondomain "github.com/globalping/backoffice/internal/adoption/domain"
	"github.com/globalping/backoffice/internal/citysearch"
	"github.com/globalping/backoffice/internal/config"
	"github.com/globalping/backoffice/internal/controlapi"
	"github.com/globalping/backoffice/internal/credits"
	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"github.com/globalping/backoffice/internal/geocode"
	"github.com/globalping/backoffice/internal/gh"
	"github.com/globalping/backoffice/internal/notification"
	notifdomain "github.com/globalping/backoffice/internal/notification/domain"
	"github.com/globalping/backoffice/internal/probe"
	probedomain "github.com/globalping/backoffice/internal/probe/domain"
	"github.com/globalping/backoffice/internal/ratelimit"
	"github.com/globalping/backoffice/internal/scheduler"
	"github.com/globalping/backoffice/internal/sponsor"
	sponsordomain "github.com/globalping/backoffice/internal/sponsor/domain"
	"github.com/globalping/backoffice/internal/token"
	tokendomain "github.com/globalping/backoffice/internal/token/domain"
	"github.com/globalping/backoffice/internal/user"
	userdomain "github.com/globalping/backoffice/internal/user/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewHTTPMetrics),
	fx.Provide(registerGin),
	gh.Module,
	geocode.Module,
	controlapi.Module,
	citysearch.Module,
	ratelimit.Module,
	notification.Module,
	credits.Module,
	sponsor.Module,
	user.Module,
	probe.Module,
	token.Module,
	adoption.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, metrics *HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(MetricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, metrics *HTTPMetrics) *gin.Engine {
	return NewEngine(log, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	userSvc       userdomain.Service
	probeSvc      probedomain.Service
	tokenSvc      tokendomain.Service
	adoptionSvc   adoptiondomain.Service
	creditsSvc    creditsdomain.Service
	sponsorSvc    sponsordomain.Service
	notifSvc      notifdomain.Service
	cityIndex     *citysearch.Index
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	UserSvc     userdomain.Service
	ProbeSvc    probedomain.Service
	TokenSvc    tokendomain.Service
	AdoptionSvc adoptiondomain.Service
	CreditsSvc  creditsdomain.Service
	SponsorSvc  sponsordomain.Service
	NotifSvc    notifdomain.Service
	CityIndex   *citysearch.Index
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("http.server"),
		userSvc:       p.UserSvc,
		probeSvc:      p.ProbeSvc,
		tokenSvc:      p.TokenSvc,
		adoptionSvc:   p.AdoptionSvc,
		creditsSvc:    p.CreditsSvc,
		sponsorSvc:    p.SponsorSvc,
		notifSvc:      p.NotifSvc,
		cityIndex:     p.CityIndex,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.engine

	r.POST("/webhooks/github-sponsors", s.handleSponsorsWebhook)
	r.GET("/city-autocomplete", s.handleCityAutocomplete)
	r.GET("/local-adoption/:token", s.handleLocalAdoption)

	authed := r.Group("/", s.AuthRequired())
	{
		authed.POST("/adoption-code/send-code", s.handleSendAdoptionCode)
		authed.POST("/adoption-code/verify-code", s.handleVerifyAdoptionCode)

		authed.GET("/probes", s.handleListProbes)
		authed.PATCH("/probes/:id", s.handleUpdateProbe)
		authed.DELETE("/probes/:id/adoption", s.handleUnadoptProbe)

		authed.GET("/applications", s.handleListApplications)
		authed.POST("/applications/revoke", s.handleRevokeApplication)

		authed.GET("/tokens", s.handleListTokens)
		authed.POST("/tokens", s.handleCreateToken)
		authed.DELETE("/tokens/:id", s.handleDeleteToken)

		authed.GET("/credits-timeline", s.handleCreditsTimeline)
		authed.GET("/notifications", s.handleListNotifications)

		authed.GET("/me", s.handleMe)
		authed.PATCH("/me", s.handleUpdateMe)
		authed.POST("/me/adoption-token", s.handleRegenerateAdoptionToken)
	}
}
