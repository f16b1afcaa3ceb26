package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Classroom/internal/adapters/rtc"
	"github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/resources"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

const clientTokenKey = "ct"

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie. It identifies the uploader across HTTP and WS.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Orch     *orch.Orchestrator
	Pipeline *conversion.Pipeline
	Signal   *signal.SignalWSController
	RTC      rtc.ClientConfig

	// Resources is optional; without it the shared resource routes are off.
	Resources *resources.Library
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("ClassroomSessions", store))
	r.Use(ClientTokenMiddleware())
	r.MaxMultipartMemory = 8 << 20

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	slides := newSlidesHandler(d.Pipeline.Storage())
	r.GET("/slides/:job/:file", slides.serve)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	up := &uploadHandler{
		ctx:         ctx,
		orch:        d.Orch,
		pipeline:    d.Pipeline,
		uploadsDir:  cfg.Storage.UploadsDir,
		maxSize:     cfg.Storage.MaxUploadSize,
		defaultRoom: cfg.Room.Default,
	}
	rooms := &roomsHandler{orch: d.Orch}

	api := r.Group("/api")
	api.POST("/upload", up.handle)
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:room/state", rooms.state)
	api.GET("/rtc-config", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.RTC)
	})
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c)
	})

	if d.Resources != nil {
		res := newResourcesHandler(d.Orch, d.Resources, cfg.Storage.MaxUploadSize)
		r.GET("/resources/:id/:name", res.serve)
		api.POST("/upload-resource", res.upload)
		api.DELETE("/resources/:id/:name", res.remove)
		api.GET("/resources-index", res.index)
	}

	return r
}
