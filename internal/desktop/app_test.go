package desktop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	app := NewApp()
	version := app.GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.Contains(version, "."), "Version should contain a dot")
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	assert.NotNil(t, app)
}

func TestBindingsBeforeStartupAreSafe(t *testing.T) {
	app := NewApp()

	assert.Empty(t, app.GetSessions())
	assert.Equal(t, "waiting_for_hold", app.GetTutorialPhase())
	app.PanelHidden()
	app.ClickOutside()
	app.SelectSession(1)
	app.DismissPanel()
	app.StartTutorial()
	app.StopTutorial()
}
