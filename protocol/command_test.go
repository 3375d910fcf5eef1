package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	t.Run("formats bare query", func(t *testing.T) {
		line, err := Query("Firmware")
		require.NoError(t, err)
		assert.Equal(t, "?Firmware", line)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := Query("")
		assert.Error(t, err)
	})

	t.Run("rejects reserved characters", func(t *testing.T) {
		for _, name := range []string{"Outlet Status", "Outlet=3", "a,b", "x\ny"} {
			_, err := Query(name)
			assert.Error(t, err, "name %q", name)
		}
	})
}

func TestQueryArg(t *testing.T) {
	t.Run("formats query with argument", func(t *testing.T) {
		line, err := QueryArg("OutletName", "3")
		require.NoError(t, err)
		assert.Equal(t, "?OutletName=3", line)
	})

	t.Run("rejects argument with comma", func(t *testing.T) {
		_, err := QueryArg("OutletName", "3,4")
		assert.Error(t, err)
	})
}

func TestControl(t *testing.T) {
	t.Run("formats control with args", func(t *testing.T) {
		line, err := Control("OutletSet", "3", "ON")
		require.NoError(t, err)
		assert.Equal(t, "!OutletSet=3,ON", line)
	})

	t.Run("formats bare control", func(t *testing.T) {
		line, err := Control("Reboot")
		require.NoError(t, err)
		assert.Equal(t, "!Reboot", line)
	})

	t.Run("rejects embedded newline in args", func(t *testing.T) {
		_, err := Control("OutletSet", "3\nON")
		assert.Error(t, err)
	})
}

func TestValidateOutbound(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{name: "valid query", line: "?Firmware"},
		{name: "valid control", line: "!OutletSet=1,ON"},
		{name: "empty", line: "", wantErr: true},
		{name: "missing sigil", line: "Firmware", wantErr: true},
		{name: "embedded newline", line: "?Firmware\n!Reboot", wantErr: true},
		{name: "embedded carriage return", line: "?Firmware\r", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutbound(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
