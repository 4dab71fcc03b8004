package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/osmakov/calgrid/internal/domain"
)

type Config struct {
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	UserEmail      string

	DatabasePath string
	Timezone     *time.Location
	RefreshCron  string

	WindowStartHour int
	WindowHours     int
	SnapMinutes     int

	Calendars []CalendarConfig
}

// CalendarConfig describes one calendar collection in the YAML calendar
// file.
type CalendarConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Color     string `yaml:"color"`
	Context   string `yaml:"context"`
	Path      string `yaml:"path"`
	Primary   bool   `yaml:"primary"`
	System    bool   `yaml:"system"`
	Deletable *bool  `yaml:"deletable"`
}

func Load() (*Config, error) {
	caldavURL := os.Getenv("CALDAV_URL")
	if caldavURL == "" {
		return nil, fmt.Errorf("CALDAV_URL is required")
	}

	username := os.Getenv("CALDAV_USERNAME")
	if username == "" {
		return nil, fmt.Errorf("CALDAV_USERNAME is required")
	}

	password := os.Getenv("CALDAV_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("CALDAV_PASSWORD is required")
	}

	userEmail := os.Getenv("CALDAV_USER_EMAIL")
	if userEmail == "" {
		userEmail = username
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/calgrid.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "UTC"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	refreshCron := os.Getenv("REFRESH_CRON")
	if refreshCron == "" {
		refreshCron = "*/5 * * * *"
	}

	windowStart, err := intEnv("WINDOW_START_HOUR", 8)
	if err != nil {
		return nil, err
	}
	windowHours, err := intEnv("WINDOW_HOURS", 12)
	if err != nil {
		return nil, err
	}
	snapMinutes, err := intEnv("SNAP_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CalDAVURL:       caldavURL,
		CalDAVUsername:  username,
		CalDAVPassword:  password,
		UserEmail:       userEmail,
		DatabasePath:    dbPath,
		Timezone:        tz,
		RefreshCron:     refreshCron,
		WindowStartHour: windowStart,
		WindowHours:     windowHours,
		SnapMinutes:     snapMinutes,
	}

	calendarsFile := os.Getenv("CALENDARS_FILE")
	if calendarsFile == "" {
		calendarsFile = "./calendars.yaml"
	}
	if err := cfg.loadCalendars(calendarsFile); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return v, nil
}

// loadCalendars reads the YAML calendar file. A missing file is fine; the
// client then works off server discovery alone.
func (c *Config) loadCalendars(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read calendars file: %w", err)
	}

	var file struct {
		Calendars []CalendarConfig `yaml:"calendars"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse calendars file: %w", err)
	}

	for i := range file.Calendars {
		if err := normalizeCalendar(&file.Calendars[i]); err != nil {
			return err
		}
	}
	c.Calendars = file.Calendars
	return nil
}

func normalizeCalendar(cc *CalendarConfig) error {
	if cc.ID == "" {
		return fmt.Errorf("calendar without id")
	}
	if cc.Path == "" {
		return fmt.Errorf("calendar %s without path", cc.ID)
	}
	if cc.Name == "" {
		cc.Name = cc.ID
	}
	switch domain.ContextKind(cc.Context) {
	case domain.ContextPersonal, domain.ContextBusiness, domain.ContextHousehold:
	case "":
		cc.Context = string(domain.ContextPersonal)
	default:
		return fmt.Errorf("calendar %s has unknown context %q", cc.ID, cc.Context)
	}
	return nil
}

// DomainCalendars converts the configured calendars to their domain form.
// Deletability defaults to true unless the calendar is a system one.
func (c *Config) DomainCalendars() []domain.Calendar {
	out := make([]domain.Calendar, 0, len(c.Calendars))
	for _, cc := range c.Calendars {
		deletable := !cc.System
		if cc.Deletable != nil {
			deletable = *cc.Deletable
		}
		out = append(out, domain.Calendar{
			ID:          cc.ID,
			Name:        cc.Name,
			Color:       cc.Color,
			Context:     domain.ContextKind(cc.Context),
			IsPrimary:   cc.Primary,
			IsSystem:    cc.System,
			IsDeletable: deletable,
		})
	}
	return out
}
