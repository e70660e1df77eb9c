package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/tui/theme"
)

// setupValues backs the first-run form fields.
type setupValues struct {
	days     int
	theme    string
	alerts   bool
	timezone string
}

func newSetupValues(cfg config.Config) setupValues {
	return setupValues{
		days:     cfg.General.DefaultDays,
		theme:    theme.Active.Name,
		alerts:   cfg.Alerts.Enabled,
		timezone: cfg.General.Timezone,
	}
}

func newSetupForm(sessionCount int, sessionsDir string, vals *setupValues) *huh.Form {
	daysOpts := make([]huh.Option[int], 0, len(dayChoices))
	for _, d := range dayChoices {
		daysOpts = append(daysOpts, huh.NewOption(fmt.Sprintf("%d days", d), d))
	}
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, th := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(th.Name, th.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to cxburn").
				Description(fmt.Sprintf("Found %s Codex sessions in %s.\nA few quick choices and you're in.",
					cli.FormatNumber(int64(sessionCount)), sessionsDir)),
			huh.NewSelect[int]().
				Title("Default time range").
				Options(daysOpts...).
				Value(&vals.days),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.theme),
			huh.NewInput().
				Title("Timezone for day boundaries").
				Description("IANA name such as Europe/Berlin. Leave empty for local time.").
				Placeholder("local").
				Validate(validateTimezone).
				Value(&vals.timezone),
			huh.NewConfirm().
				Title("Alert when a rate-limit window runs low?").
				Affirmative("Yes").
				Negative("No").
				Value(&vals.alerts),
		),
	).WithShowHelp(true)
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	_, err := config.Location(config.Config{General: config.GeneralConfig{Timezone: tz}})
	return err
}

// apply copies the answers onto cfg.
func (v setupValues) apply(cfg config.Config) config.Config {
	if v.days > 0 {
		cfg.General.DefaultDays = v.days
	}
	cfg.Appearance.Theme = v.theme
	cfg.Alerts.Enabled = v.alerts
	cfg.General.Timezone = v.timezone
	return cfg
}

// applySetup stores the form answers in the running dashboard and saves
// them to the config file.
func (a *App) applySetup() {
	a.cfg = a.setupVals.apply(a.cfg)
	a.days = a.cfg.General.DefaultDays
	theme.SetActive(a.cfg.Appearance.Theme)
	if loc, err := config.Location(a.cfg); err == nil {
		a.loc = loc
	}
	a.settings.saveErr = config.Save(a.cfg)
}

// RunSetup runs the first-run form on its own and saves the answers.
func RunSetup(cfg config.Config, sessionCount int, sessionsDir string) (config.Config, error) {
	vals := newSetupValues(cfg)
	if err := newSetupForm(sessionCount, sessionsDir, &vals).Run(); err != nil {
		return cfg, err
	}
	cfg = vals.apply(cfg)
	if err := config.Save(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
