package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"calgrid/internal/bizhours"
	"calgrid/internal/drag"
	"calgrid/internal/layout"
	"calgrid/internal/model"
	"calgrid/internal/ticker"
)

// ICSSource is one iCalendar feed the event list is imported from. Exactly
// one of URL or Path is expected.
type ICSSource struct {
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	URL  string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"-"`
}

// LayoutConfig exposes the visual tuning constants of the horizontal
// policies. Zero values take the defaults.
type LayoutConfig struct {
	ColumnMargin          float64 `yaml:"column_margin" toml:"column_margin" json:"column_margin"`
	StartToleranceSeconds int     `yaml:"start_tolerance_seconds" toml:"start_tolerance_seconds" json:"start_tolerance_seconds"`
	StepPercent           float64 `yaml:"step_percent" toml:"step_percent" json:"step_percent"`
	WidthDecay            float64 `yaml:"width_decay" toml:"width_decay" json:"width_decay"`
	PixelStep             float64 `yaml:"pixel_step" toml:"pixel_step" json:"pixel_step"`
	MinWidthPercent       float64 `yaml:"min_width_percent" toml:"min_width_percent" json:"min_width_percent"`
}

// Config is the top-level widget configuration.
type Config struct {
	// Listen is the HTTP listen address of the debug API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA zone day keys and grid times are computed in.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" toml:"week_start" json:"week_start"`

	View        string `yaml:"view" toml:"view" json:"view"`
	DisplayMode string `yaml:"display_mode" toml:"display_mode" json:"display_mode"`

	// ShowTimeFrom and ShowTimeTo bound the visible window in hours.
	ShowTimeFrom float64 `yaml:"show_time_from" toml:"show_time_from" json:"show_time_from"`
	ShowTimeTo   float64 `yaml:"show_time_to" toml:"show_time_to" json:"show_time_to"`

	ShowAllDay         bool    `yaml:"show_all_day" toml:"show_all_day" json:"show_all_day"`
	AllDayEventsHeight float64 `yaml:"all_day_events_height" toml:"all_day_events_height" json:"all_day_events_height"`

	// HourHeight is the pixel height of one hour row.
	HourHeight float64 `yaml:"hour_height" toml:"hour_height" json:"hour_height"`

	SlotIntervalMinutes int `yaml:"slot_interval_minutes" toml:"slot_interval_minutes" json:"slot_interval_minutes"`
	MinEventDuration    int `yaml:"min_event_duration" toml:"min_event_duration" json:"min_event_duration"`

	AllowEventDragging bool `yaml:"allow_event_dragging" toml:"allow_event_dragging" json:"allow_event_dragging"`
	AllowEventResize   bool `yaml:"allow_event_resize" toml:"allow_event_resize" json:"allow_event_resize"`
	CreateEventOnClick bool `yaml:"create_event_on_click" toml:"create_event_on_click" json:"create_event_on_click"`

	BlockBusinessHours bool           `yaml:"block_business_hours" toml:"block_business_hours" json:"block_business_hours"`
	BusinessHours      bizhours.Rules `yaml:"business_hours,omitempty" toml:"business_hours,omitempty" json:"business_hours,omitempty"`

	// HiddenDays lists weekdays (0 or 7 = Sunday) left out of multi-day views.
	HiddenDays []int `yaml:"hidden_days,omitempty" toml:"hidden_days,omitempty" json:"hidden_days,omitempty"`

	Layout LayoutConfig `yaml:"layout" toml:"layout" json:"layout"`

	// NowRefresh is the cron schedule that moves the current-time line.
	NowRefresh string `yaml:"now_refresh" toml:"now_refresh" json:"now_refresh"`

	// ICSRefresh is the cron schedule that re-imports the ICS sources.
	ICSRefresh string `yaml:"ics_refresh" toml:"ics_refresh" json:"ics_refresh"`
	CacheDir   string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`
	Locale   string `yaml:"locale" toml:"locale" json:"locale"`

	ICS []ICSSource `yaml:"ics" toml:"ics" json:"ics"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "UTC"
	defaultNowRefresh = "* * * * *"
	defaultICSRefresh = "*/15 * * * *"
	defaultCacheDir   = "./var/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		WeekStart:           "monday",
		View:                model.ViewWeek.String(),
		DisplayMode:         string(model.SideBySide),
		ShowTimeFrom:        9,
		ShowTimeTo:          22,
		ShowAllDay:          true,
		AllDayEventsHeight:  100,
		HourHeight:          60,
		SlotIntervalMinutes: 60,
		MinEventDuration:    15,
		AllowEventDragging:  true,
		AllowEventResize:    true,
		CreateEventOnClick:  true,
		Layout:              defaultLayout(),
		NowRefresh:          defaultNowRefresh,
		ICSRefresh:          defaultICSRefresh,
		CacheDir:            defaultCacheDir,
		LogLevel:            "info",
		Locale:              "en",
		ICS:                 []ICSSource{},
	}
}

func defaultLayout() LayoutConfig {
	t := layout.DefaultTuning()
	return LayoutConfig{
		ColumnMargin:          t.ColumnMargin,
		StartToleranceSeconds: int(t.StartTolerance / time.Second),
		StepPercent:           t.StepPercent,
		WidthDecay:            t.WidthDecay,
		PixelStep:             t.PixelStep,
		MinWidthPercent:       t.MinWidthPercent,
	}
}

// Normalize fills missing or unusable values with defaults so partially
// filled files still produce a working widget.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "monday"
	}
	c.View = model.ParseViewKind(c.View).String()
	c.DisplayMode = string(model.ParseDisplayMode(c.DisplayMode))

	// An unusable window falls back as a whole rather than field by field.
	if c.ShowTimeFrom < 0 || c.ShowTimeTo > 24 || c.ShowTimeTo <= c.ShowTimeFrom {
		c.ShowTimeFrom, c.ShowTimeTo = def.ShowTimeFrom, def.ShowTimeTo
	}
	if c.AllDayEventsHeight < 0 {
		c.AllDayEventsHeight = def.AllDayEventsHeight
	}
	if c.HourHeight <= 0 {
		c.HourHeight = def.HourHeight
	}
	if c.SlotIntervalMinutes <= 0 || c.SlotIntervalMinutes > 24*60 {
		c.SlotIntervalMinutes = def.SlotIntervalMinutes
	}
	if c.MinEventDuration <= 0 {
		c.MinEventDuration = def.MinEventDuration
	}

	dl := def.Layout
	if c.Layout.ColumnMargin < 0 {
		c.Layout.ColumnMargin = dl.ColumnMargin
	}
	if c.Layout.StartToleranceSeconds <= 0 {
		c.Layout.StartToleranceSeconds = dl.StartToleranceSeconds
	}
	if c.Layout.StepPercent <= 0 {
		c.Layout.StepPercent = dl.StepPercent
	}
	if c.Layout.WidthDecay <= 0 || c.Layout.WidthDecay > 1 {
		c.Layout.WidthDecay = dl.WidthDecay
	}
	if c.Layout.PixelStep <= 0 {
		c.Layout.PixelStep = dl.PixelStep
	}
	if c.Layout.MinWidthPercent <= 0 || c.Layout.MinWidthPercent > 100 {
		c.Layout.MinWidthPercent = dl.MinWidthPercent
	}

	if ticker.Validate(c.NowRefresh) != nil {
		c.NowRefresh = def.NowRefresh
	}
	if ticker.Validate(c.ICSRefresh) != nil {
		c.ICSRefresh = def.ICSRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.ICS == nil {
		c.ICS = []ICSSource{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("source-%d", i+1)
		}
	}
}

// Warnings describes settings that were accepted but will be ignored at
// runtime. Nothing here is fatal.
func (c *Config) Warnings() []string {
	var out []string
	for _, i := range c.BusinessHours.Validate() {
		out = append(out, fmt.Sprintf("business_hours[%d] is malformed and ignored", i))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		out = append(out, fmt.Sprintf("timezone %q unknown, using local time", c.Timezone))
	}
	for _, s := range c.ICS {
		if (s.URL == "") == (s.Path == "") {
			out = append(out, fmt.Sprintf("ics source %q needs exactly one of url or path", s.ID))
		}
	}
	return out
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.Local
}

func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

func (c *Config) ViewKind() model.ViewKind { return model.ParseViewKind(c.View) }

func (c *Config) Mode() model.DisplayMode { return model.ParseDisplayMode(c.DisplayMode) }

// HeaderMargin is the pixel height reserved above the grid for the all-day
// lane; zero when the lane is hidden.
func (c *Config) HeaderMargin() float64 {
	if !c.ShowAllDay {
		return 0
	}
	return c.AllDayEventsHeight
}

// Grid derives the day-cell geometry from the configured window.
func (c *Config) Grid() layout.Grid {
	w := layout.Window{From: c.ShowTimeFrom, To: c.ShowTimeTo}
	header := c.HeaderMargin()
	return layout.Grid{
		Window:           w,
		CellHeight:       header + w.Span()*c.HourHeight,
		HeaderMargin:     header,
		Inset:            layout.DefaultInset,
		AllDayHeight:     layout.DefaultAllDayHeight,
		MonthEventHeight: layout.DefaultMonthEventHeight,
	}
}

// Slots is the number of drop slots in the visible window.
func (c *Config) Slots() int {
	n := int((c.ShowTimeTo - c.ShowTimeFrom) * 60 / float64(c.SlotIntervalMinutes))
	if n < 1 {
		return 1
	}
	return n
}

func (c *Config) Tuning() layout.Tuning {
	return layout.Tuning{
		ColumnMargin:    c.Layout.ColumnMargin,
		StartTolerance:  time.Duration(c.Layout.StartToleranceSeconds) * time.Second,
		StepPercent:     c.Layout.StepPercent,
		WidthDecay:      c.Layout.WidthDecay,
		PixelStep:       c.Layout.PixelStep,
		MinWidthPercent: c.Layout.MinWidthPercent,
	}
}

// DragConfig carries the interaction options into a drag controller.
// Translator and Now are left for the caller to set.
func (c *Config) DragConfig() drag.Config {
	return drag.Config{
		Grid:               c.Grid(),
		Slots:              c.Slots(),
		View:               c.ViewKind(),
		Mode:               c.Mode(),
		Tuning:             c.Tuning(),
		AllowDragging:      c.AllowEventDragging,
		AllowResize:        c.AllowEventResize,
		BlockBusinessHours: c.BlockBusinessHours,
		BusinessHours:      c.BusinessHours,
		MinEventDuration:   time.Duration(c.MinEventDuration) * time.Minute,
		ShowAllDayLane:     c.ShowAllDay,
		CreateOnClick:      c.CreateEventOnClick,
		InsertCreated:      true,
		Throttle:           drag.DefaultThrottle,
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads configuration from path. YAML is the default format; a .toml
// extension selects TOML.
//
// If the file does not exist a default config is written with 0600
// permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// envPrefix namespaces the environment overrides.
const envPrefix = "CALGRID_"

// ApplyEnv loads the given dotenv files (missing files are ignored) and then
// applies CALGRID_* overrides from the process environment. Variables that
// are already set win over dotenv values.
func (c *Config) ApplyEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	}

	if v := os.Getenv(envPrefix + "LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(envPrefix + "TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "LOCALE"); v != "" {
		c.Locale = v
	}
	user, pass := os.Getenv(envPrefix+"BASIC_AUTH_USER"), os.Getenv(envPrefix+"BASIC_AUTH_PASSWORD")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	c.Normalize()
	return nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
