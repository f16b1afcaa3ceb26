package commands

import (
	"context"
	"fmt"

	router "github.com/dkeye/Classroom/internal/adapters/http"
	"github.com/dkeye/Classroom/internal/adapters/rtc"
	"github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/app/preload"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/identity"
	"github.com/dkeye/Classroom/internal/resources"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

type server struct {
	orch     *orch.Orchestrator
	pipeline *conversion.Pipeline
	sweeper  conversion.Sweeper
	router   *gin.Engine
}

func newStorage(fs afero.Fs, cfg *config.Config) *conversion.Storage {
	return conversion.NewStorage(fs, cfg.Storage.SlidesDir, "/slides")
}

func newPipeline(storage *conversion.Storage, cfg *config.Config) *conversion.Pipeline {
	cc := cfg.Conversion
	fs := storage.Fs()
	return conversion.NewPipeline(conversion.Config{
		Storage:   storage,
		Office:    conversion.OfficeConverter{Bin: cc.OfficeBin, Timeout: cc.OfficeTimeout, Fs: fs},
		Renderer:  conversion.PopplerRenderer{Bin: cc.RendererBin, DPI: cc.RenderDPI, Fs: fs},
		Encoder:   conversion.Encoder{MaxWidth: cc.MaxWidth, MaxHeight: cc.MaxHeight, Quality: cc.Quality},
		BatchSize: cc.BatchSize,
	})
}

// build wires every component from cfg. ctx bounds the room loops and
// background conversions.
func build(ctx context.Context, cfg *config.Config, fs afero.Fs) (*server, error) {
	authority, err := app.ParseAuthorityPolicy(cfg.Room.AuthorityPolicy)
	if err != nil {
		return nil, err
	}
	dir, err := identity.NewDirectory(cfg.Identity.Identities(), cfg.Identity.AllowGuests)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	iceCfg, err := rtc.NewConfiguration(cfg.RTC.ICEServers)
	if err != nil {
		return nil, err
	}
	rtcClient := rtc.ForClient(iceCfg)

	storage := newStorage(fs, cfg)
	pipeline := newPipeline(storage, cfg)

	o := orch.New(ctx, orch.Options{
		Identities:  dir,
		Scheduler:   preload.NewScheduler(ctx, cfg.Preload.Window, cfg.Preload.Delay, storage),
		Storage:     storage,
		Authority:   authority,
		ChatLimiter: app.NewRoomRateLimiter(cfg.Room.ChatRateLimit, cfg.Room.ChatRateInterval),
		ChatMaxLen:  cfg.Room.ChatMaxLen,
		WarmPreload: cfg.Preload.WarmFirst,
		RTC:         rtcClient,
	})
	ctl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:   cfg.ReadLimit,
		PingPeriod:  cfg.PingPeriod,
		SendBuffer:  cfg.Room.SendBuffer,
		DefaultRoom: domain.RoomID(cfg.Room.Default),
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:      o,
		Pipeline:  pipeline,
		Signal:    ctl,
		RTC:       rtcClient,
		Resources: resources.NewLibrary(fs, cfg.Storage.ResourcesDir, "/resources"),
	})
	return &server{
		orch:     o,
		pipeline: pipeline,
		sweeper:  conversion.Sweeper{Storage: storage, Interval: cfg.Storage.SweepInterval, MaxAge: cfg.Storage.MaxAge},
		router:   r,
	}, nil
}
