package dashboard

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/souravmenon1999/ticker-dashboard/internal/ticker"
	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

//go:embed templates/index.html
var templateFS embed.FS

// PreferenceHeader carries the browser's color-scheme preference once the
// page has asked for it via Accept-CH.
const PreferenceHeader = "Sec-CH-Prefers-Color-Scheme"

// StateSource is the part of ticker.Store the dashboard reads.
type StateSource interface {
	State() ticker.State
	Watch(fn func(ticker.State)) func()
}

// Server serves the dashboard page and pushes view updates to it.
type Server struct {
	title  string
	symbol string

	source  StateSource
	theme   *ThemeState
	surface *EmbedSurface
	chart   *Chart
	hub     *Hub
	tmpl    *template.Template
	logger  zerolog.Logger

	closeOnce sync.Once
	unwatch   func()
}

type themeRequest struct {
	Theme string `json:"theme" binding:"required,oneof=dark light"`
}

// pageData is what index.html renders. ThemePending asks the page to report
// the browser's color scheme itself.
type pageData struct {
	View         View
	Chart        ChartEmbed
	ThemePending bool
}

func NewServer(title, symbol string, source StateSource, theme *ThemeState, logger zerolog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	surface := &EmbedSurface{}
	s := &Server{
		title:   title,
		symbol:  symbol,
		source:  source,
		theme:   theme,
		surface: surface,
		chart:   NewChart(surface, logger),
		hub:     NewHub(logger),
		tmpl:    tmpl,
		logger:  logger,
	}
	s.unwatch = source.Watch(func(st ticker.State) {
		s.hub.Broadcast(Envelope{Type: EnvelopeView, Data: s.view(st)})
	})
	return s, nil
}

// Hub exposes the browser fan-out.
func (s *Server) Hub() *Hub { return s.hub }

// Close stops watching the store and disconnects every browser.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.unwatch()
		s.hub.Close()
	})
}

// Router builds the gin engine with every dashboard route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.logger))

	r.GET("/", s.handlePage)
	r.GET("/healthz", s.handleHealth)
	r.GET("/ws", s.handleWS)

	api := r.Group("/api")
	api.Use(ErrorMiddleware())
	api.GET("/view", s.handleView)
	api.GET("/state", s.handleState)
	api.GET("/chart", s.handleChart)
	api.POST("/theme/toggle", s.handleToggle)
	api.PUT("/theme", s.handleSetTheme)

	return r
}

func (s *Server) view(st ticker.State) View {
	return BuildView(s.title, s.symbol, st, s.theme.Current())
}

// applyTheme re-mounts the chart when needed and pushes the new look.
func (s *Server) applyTheme(t Theme) View {
	if s.chart.Update(s.symbol, t) {
		s.hub.Broadcast(Envelope{Type: EnvelopeChart, Data: s.surface.Embed()})
	}
	v := BuildView(s.title, s.symbol, s.source.State(), t)
	s.hub.Broadcast(Envelope{Type: EnvelopeView, Data: v})
	return v
}

func (s *Server) handlePage(c *gin.Context) {
	c.Header("Accept-CH", PreferenceHeader)
	c.Header("Critical-CH", PreferenceHeader)
	c.Header("Vary", PreferenceHeader)

	t := s.theme.Resolve(c.GetHeader(PreferenceHeader))
	if s.chart.Update(s.symbol, t) {
		s.hub.Broadcast(Envelope{Type: EnvelopeChart, Data: s.surface.Embed()})
	}

	data := pageData{
		View:         BuildView(s.title, s.symbol, s.source.State(), t),
		Chart:        s.surface.Embed(),
		ThemePending: !s.theme.Resolved(),
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.tmpl.Execute(c.Writer, data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render dashboard page")
	}
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, Res{Success: true, Data: s.view(s.source.State())})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, Res{Success: true, Data: s.source.State()})
}

func (s *Server) handleChart(c *gin.Context) {
	c.JSON(http.StatusOK, Res{Success: true, Data: s.surface.Embed()})
}

func (s *Server) handleToggle(c *gin.Context) {
	t := s.theme.Toggle()
	c.JSON(http.StatusOK, Res{Success: true, Data: s.applyTheme(t)})
}

func (s *Server) handleSetTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			_ = c.Error(err)
		} else {
			_ = c.Error(types.NewInvalidRequest(err.Error()))
		}
		return
	}

	t, ok := ParseTheme(req.Theme)
	if !ok {
		_ = c.Error(types.NewInvalidRequest(fmt.Sprintf("unknown theme %q", req.Theme)))
		return
	}
	s.theme.Set(t)
	c.JSON(http.StatusOK, Res{Success: true, Data: s.applyTheme(t)})
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.source.State()
	code := http.StatusOK
	if st.Status != ticker.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, Res{
		Success: code == http.StatusOK,
		Data: gin.H{
			"status":  st.Status.String(),
			"topic":   st.Topic,
			"seq":     st.Seq,
			"clients": s.hub.Len(),
		},
	})
}

func (s *Server) handleWS(c *gin.Context) {
	initial := []Envelope{
		{Type: EnvelopeView, Data: s.view(s.source.State())},
		{Type: EnvelopeChart, Data: s.surface.Embed()},
	}
	if err := s.hub.Serve(c.Writer, c.Request, initial...); err != nil {
		s.logger.Warn().Err(err).Msg("Dashboard websocket upgrade failed")
	}
}
