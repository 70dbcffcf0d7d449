// Package config loads pdfed settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Epistemic-Technology/pdfed/internal/annotation"
	"github.com/Epistemic-Technology/pdfed/internal/canvas"
	"github.com/Epistemic-Technology/pdfed/internal/interaction"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/ocr"
	"github.com/Epistemic-Technology/pdfed/internal/viewport"
)

type Viewer struct {
	Scale          float64 `yaml:"scale"`
	PageGap        float64 `yaml:"page_gap"`
	Margin         float64 `yaml:"margin"`
	ViewportWidth  float64 `yaml:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height"`
	DPR            float64 `yaml:"dpr"`
	Mode           string  `yaml:"mode"`
}

type Discovery struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	Interval      time.Duration `yaml:"interval"`
	MinPageHeight float64       `yaml:"min_page_height"`
	ResizeDelay   time.Duration `yaml:"resize_delay"`
}

type Tools struct {
	Color          string  `yaml:"color"`
	HighlightColor string  `yaml:"highlight_color"`
	Opacity        float64 `yaml:"opacity"`
	StrokeWidth    float64 `yaml:"stroke_width"`
	FontSize       float64 `yaml:"font_size"`
	RedactFill     string  `yaml:"redact_fill"`
	RedactPattern  string  `yaml:"redact_pattern"`
}

type Interaction struct {
	HitTolerance    float64 `yaml:"hit_tolerance"`
	HandleTolerance float64 `yaml:"handle_tolerance"`
	HandlePadding   float64 `yaml:"handle_padding"`
	MinGesture      float64 `yaml:"min_gesture"`
	MinResize       float64 `yaml:"min_resize"`
	MaxImageSize    float64 `yaml:"max_image_size"`
	CommentIconSize float64 `yaml:"comment_icon_size"`
}

type OCR struct {
	Engine            string   `yaml:"engine"`
	Model             string   `yaml:"model"`
	Languages         []string `yaml:"languages"`
	MinConfidence     float64  `yaml:"min_confidence"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	APIKey            string   `yaml:"-"`
}

type Storage struct {
	DBPath string `yaml:"db_path"`
}

type Zotero struct {
	APIKey    string `yaml:"-"`
	LibraryID string `yaml:"library_id"`
}

// Config is the full server configuration.
type Config struct {
	Viewer      Viewer      `yaml:"viewer"`
	Discovery   Discovery   `yaml:"discovery"`
	Tools       Tools       `yaml:"tools"`
	Interaction Interaction `yaml:"interaction"`
	OCR         OCR         `yaml:"ocr"`
	Storage     Storage     `yaml:"storage"`
	Zotero      Zotero      `yaml:"zotero"`
}

// Default returns the built-in configuration.
func Default() *Config {
	def := interaction.DefaultOptions()
	disc := canvas.DefaultOptions()
	return &Config{
		Viewer: Viewer{
			Scale:          1.5,
			PageGap:        16,
			ViewportWidth:  1280,
			ViewportHeight: 800,
			DPR:            1,
			Mode:           string(viewport.ModePaginated),
		},
		Discovery: Discovery{
			MaxAttempts:   disc.MaxAttempts,
			Interval:      disc.Interval,
			MinPageHeight: disc.MinPageHeight,
			ResizeDelay:   150 * time.Millisecond,
		},
		Tools: Tools{
			Color:          def.Color.Hex(),
			HighlightColor: def.HighlightColor.Hex(),
			Opacity:        def.Opacity,
			StrokeWidth:    def.StrokeWidth,
			FontSize:       def.FontSize,
			RedactFill:     def.RedactFill.Hex(),
			RedactPattern:  string(def.RedactPattern),
		},
		Interaction: Interaction{
			HitTolerance:    def.HitTolerance,
			HandleTolerance: def.HandleTolerance,
			HandlePadding:   def.HandlePadding,
			MinGesture:      def.MinGesture,
			MinResize:       def.MinResize,
			MaxImageSize:    def.MaxImageSize,
			CommentIconSize: def.CommentIconSize,
		},
		OCR: OCR{
			Engine:            "openai",
			Languages:         []string{"eng"},
			MinConfidence:     30,
			RequestsPerSecond: 2,
		},
	}
}

// Path returns the config file location: PDFED_CONFIG or ~/.pdfed/config.yaml.
func Path() (string, error) {
	if p := os.Getenv("PDFED_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := logger.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path over the defaults, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if cfg.Storage.DBPath == "" {
		dir, err := logger.DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.DBPath = filepath.Join(dir, "pdfed.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PDFED_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("PDFED_OCR_ENGINE"); v != "" {
		c.OCR.Engine = v
	}
	if v := os.Getenv("PDFED_RENDER_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Viewer.Scale = f
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OCR.APIKey = v
	}
	if v := os.Getenv("ZOTERO_API_KEY"); v != "" {
		c.Zotero.APIKey = v
	}
	if v := os.Getenv("ZOTERO_LIBRARY_ID"); v != "" {
		c.Zotero.LibraryID = v
	}
}

// Validate checks values a session cannot run with.
func (c *Config) Validate() error {
	if c.Viewer.Scale <= 0 {
		return fmt.Errorf("viewer.scale must be positive, got %v", c.Viewer.Scale)
	}
	if c.Viewer.Mode != string(viewport.ModePaginated) && c.Viewer.Mode != string(viewport.ModeNative) {
		return fmt.Errorf("viewer.mode must be %q or %q, got %q", viewport.ModePaginated, viewport.ModeNative, c.Viewer.Mode)
	}
	if c.Discovery.MaxAttempts <= 0 {
		return fmt.Errorf("discovery.max_attempts must be positive, got %d", c.Discovery.MaxAttempts)
	}
	if c.Tools.Opacity < 0 || c.Tools.Opacity > 1 {
		return fmt.Errorf("tools.opacity must be within [0,1], got %v", c.Tools.Opacity)
	}
	if _, err := c.InteractionOptions(); err != nil {
		return err
	}
	return nil
}

// ViewerOptions builds the layout options for a new session.
func (c *Config) ViewerOptions() viewport.Options {
	return viewport.Options{
		Scale:          c.Viewer.Scale,
		Gap:            c.Viewer.PageGap,
		Margin:         c.Viewer.Margin,
		ViewportWidth:  c.Viewer.ViewportWidth,
		ViewportHeight: c.Viewer.ViewportHeight,
		DPR:            c.Viewer.DPR,
		Mode:           viewport.ParseMode(c.Viewer.Mode),
	}
}

// CanvasOptions builds the discovery options; the locker is set per session.
func (c *Config) CanvasOptions() canvas.Options {
	return canvas.Options{
		MinPageHeight: c.Discovery.MinPageHeight,
		MaxAttempts:   c.Discovery.MaxAttempts,
		Interval:      c.Discovery.Interval,
	}
}

// InteractionOptions builds the tool defaults and gesture thresholds.
func (c *Config) InteractionOptions() (interaction.Options, error) {
	opts := interaction.Options{
		Opacity:         c.Tools.Opacity,
		StrokeWidth:     c.Tools.StrokeWidth,
		FontSize:        c.Tools.FontSize,
		RedactPattern:   annotation.ParseRedactPattern(c.Tools.RedactPattern),
		HitTolerance:    c.Interaction.HitTolerance,
		HandleTolerance: c.Interaction.HandleTolerance,
		HandlePadding:   c.Interaction.HandlePadding,
		MinGesture:      c.Interaction.MinGesture,
		MinResize:       c.Interaction.MinResize,
		MaxImageSize:    c.Interaction.MaxImageSize,
		CommentIconSize: c.Interaction.CommentIconSize,
	}
	for _, f := range []struct {
		name string
		src  string
		dst  *annotation.Color
	}{
		{"tools.color", c.Tools.Color, &opts.Color},
		{"tools.highlight_color", c.Tools.HighlightColor, &opts.HighlightColor},
		{"tools.redact_fill", c.Tools.RedactFill, &opts.RedactFill},
	} {
		col, err := annotation.ParseColor(f.src)
		if err != nil {
			return interaction.Options{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = col
	}
	return opts, nil
}

// OCRSettings builds the engine settings.
func (c *Config) OCRSettings() ocr.Settings {
	return ocr.Settings{
		APIKey:            c.OCR.APIKey,
		Model:             c.OCR.Model,
		RequestsPerSecond: c.OCR.RequestsPerSecond,
	}
}
