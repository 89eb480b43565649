package dashboard

import (
	"sync"

	"github.com/rs/zerolog"
)

// TradingViewScript is the advanced-chart embed loader.
const TradingViewScript = "https://s3.tradingview.com/external-embedding/embed-widget-advanced-chart.js"

// WidgetConfig is the JSON the embed script reads from its own body.
type WidgetConfig struct {
	Autosize          bool     `json:"autosize"`
	Symbol            string   `json:"symbol"`
	Interval          string   `json:"interval"`
	Timezone          string   `json:"timezone"`
	Theme             Theme    `json:"theme"`
	Style             string   `json:"style"`
	Locale            string   `json:"locale"`
	EnablePublishing  bool     `json:"enable_publishing"`
	HideTopToolbar    bool     `json:"hide_top_toolbar"`
	AllowSymbolChange bool     `json:"allow_symbol_change"`
	WithDateRanges    bool     `json:"withdateranges"`
	Studies           []string `json:"studies"`
}

// NewWidgetConfig returns the fixed chart layout for a Bybit symbol.
func NewWidgetConfig(symbol string, theme Theme) WidgetConfig {
	return WidgetConfig{
		Autosize:       true,
		Symbol:         "BYBIT:" + symbol,
		Interval:       "15",
		Timezone:       "Etc/UTC",
		Theme:          theme,
		Style:          "1",
		Locale:         "en",
		WithDateRanges: true,
		Studies:        []string{"RSI@tv-basicstudies", "MACD@tv-basicstudies"},
	}
}

// Surface is where a chart lives. Clear removes the current instance, Mount
// creates a new one.
type Surface interface {
	Clear()
	Mount(cfg WidgetConfig)
}

// Chart re-creates its surface only when symbol or theme actually changes.
type Chart struct {
	mu      sync.Mutex
	surface Surface
	symbol  string
	theme   Theme
	mounted bool
	logger  zerolog.Logger
}

func NewChart(surface Surface, logger zerolog.Logger) *Chart {
	return &Chart{surface: surface, logger: logger}
}

// Update mounts the chart for (symbol, theme), clearing the previous
// instance first. It reports whether anything was re-created.
func (c *Chart) Update(symbol string, theme Theme) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted && c.symbol == symbol && c.theme == theme {
		return false
	}

	c.surface.Clear()
	c.surface.Mount(NewWidgetConfig(symbol, theme))
	c.symbol, c.theme, c.mounted = symbol, theme, true
	c.logger.Debug().Str("symbol", symbol).Str("theme", string(theme)).Msg("Chart mounted")
	return true
}

// ChartEmbed tells a browser what to mount. Browsers re-create their widget
// only when Revision changes.
type ChartEmbed struct {
	Revision  uint64        `json:"revision"`
	ScriptURL string        `json:"scriptUrl"`
	Config    *WidgetConfig `json:"config"`
}

// EmbedSurface is the Surface shared by every connected page.
type EmbedSurface struct {
	mu       sync.RWMutex
	revision uint64
	cfg      *WidgetConfig
}

func (e *EmbedSurface) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = nil
}

func (e *EmbedSurface) Mount(cfg WidgetConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revision++
	e.cfg = &cfg
}

// Embed returns the current instance description.
func (e *EmbedSurface) Embed() ChartEmbed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ChartEmbed{Revision: e.revision, ScriptURL: TradingViewScript, Config: e.cfg}
}
