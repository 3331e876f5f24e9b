package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/realtime"
	"github.com/MarcoPoloResearchLab/register/internal/register"
	"github.com/MarcoPoloResearchLab/register/internal/view"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultRegisterName      = "appointmentsDB"
)

var (
	errMissingCoordinator = errors.New("register coordinator dependency required")
	errMissingView        = errors.New("view synchronizer dependency required")
)

type Dependencies struct {
	Coordinator       *register.Coordinator
	View              *view.Synchronizer
	Realtime          *realtime.Dispatcher
	RegisterName      string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Coordinator == nil {
		return nil, errMissingCoordinator
	}
	if deps.View == nil {
		return nil, errMissingView
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	registerName := deps.RegisterName
	if registerName == "" {
		registerName = defaultRegisterName
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		coordinator:  deps.Coordinator,
		view:         deps.View,
		realtime:     deps.Realtime,
		registerName: registerName,
		heartbeat:    heartbeat,
		clock:        clock,
		logger:       logger,
	}

	group := router.Group("/appointments")
	group.GET("", handler.handleListAppointments)
	group.POST("", handler.handleCreateAppointment)
	group.POST("/reload", handler.handleReload)
	group.POST("/delete-selected", handler.handleDeleteSelected)
	group.GET("/print", handler.handlePrint)
	group.GET("/export", handler.handleExport)
	group.GET("/stream", handler.handleStream)
	group.POST("/:token/approval", handler.handleSetApproval)
	group.POST("/:token/selection", handler.handleSetSelection)
	group.POST("/:token/delete", handler.handleDeleteOne)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Last-Event-ID"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	})
}

type httpHandler struct {
	coordinator  *register.Coordinator
	view         *view.Synchronizer
	realtime     *realtime.Dispatcher
	registerName string
	heartbeat    time.Duration
	clock        func() time.Time
	logger       *zap.Logger
}
