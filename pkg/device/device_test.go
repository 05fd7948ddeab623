package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New(Options{
		Hostname:    "Home-Assistant.local",
		Product:     "System Monitor Pro",
		Version:     "0.3.0",
		Model:       "Raspberry Pi 4 Model B Rev 1.4",
		OSVersion:   "Debian GNU/Linux 12 (bookworm)",
		TopicPrefix: "system_monitor_pro",
	})

	assert.Equal(t, "system_monitor_pro_home_assistant_local", id.ID())
	assert.Equal(t, "System Monitor (Home-Assistant.local)", id.Name())
	assert.Equal(t, "Raspberry Pi 4 Model B Rev 1.4", id.Model())
	assert.Equal(t, "System Monitor Pro", id.Manufacturer())
	assert.Equal(t, "0.3.0", id.SWVersion())
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)", id.HWVersion())
	assert.Equal(t, "homeassistant://hassio/addon/system_monitor_pro/info", id.ConfigurationURL())
}

func TestNewDefaults(t *testing.T) {
	id := New(Options{Product: "System Monitor Pro"})
	assert.Equal(t, "system_monitor_pro_unknown", id.ID())
	assert.NotEmpty(t, id.Model())
	assert.Empty(t, id.ConfigurationURL())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "my_host_01", Sanitize("My-Host.01"))
	assert.Equal(t, "unknown", Sanitize("  "))
	assert.Equal(t, "a_b", Sanitize("a/b"))
}

func TestParseOSRelease(t *testing.T) {
	in := "NAME=\"Alpine Linux\"\nPRETTY_NAME=\"Alpine Linux v3.19\"\nID=alpine\n"
	assert.Equal(t, "Alpine Linux v3.19", parseOSRelease(strings.NewReader(in)))
	assert.Empty(t, parseOSRelease(strings.NewReader("ID=alpine\n")))
}
