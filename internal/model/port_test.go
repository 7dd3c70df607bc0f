package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaming_Parse(t *testing.T) {
	naming := DefaultNaming()

	tests := []struct {
		name   string
		number int
		ok     bool
	}{
		{"COM1", 1, true},
		{"COM255", 255, true},
		{"COM0", 0, false},
		{"COM256", 0, false},
		{"COMX", 0, false},
		{"LPT1", 0, false},
		{"com3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, ok := naming.Parse(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.number, number)
		})
	}

	assert.Equal(t, "COM42", naming.Render(42))
}

func TestNewPort(t *testing.T) {
	port, err := NewPort(DefaultNaming(), 7, `\Device\Serial6`)
	require.NoError(t, err)
	assert.Equal(t, "COM7", port.Name)
	assert.Equal(t, StateNewest, port.State)
	assert.False(t, port.HasDescription())
	assert.Empty(t, port.Owner())

	_, err = NewPort(DefaultNaming(), 300, `\Device\Serial6`)
	assert.Error(t, err)
	_, err = NewPort(DefaultNaming(), 7, "")
	assert.Error(t, err)
}

func TestPort_CloneIsDeep(t *testing.T) {
	port := &Port{Number: 2, Description: StringPtr("USB Serial"), ProcessName: StringPtr("putty")}

	clone := port.Clone()
	*port.Description = "changed"
	*port.ProcessName = "changed"

	assert.Equal(t, "USB Serial", *clone.Description)
	assert.Equal(t, "putty", clone.Owner())
}

func TestPort_JSON(t *testing.T) {
	data, err := json.Marshal(Port{Number: 3, Name: "COM3", DeviceName: `\Device\VCP0`, State: StateRemoved})
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":3,"name":"COM3","device_name":"\\Device\\VCP0","state":"REMOVED"}`, string(data))

	var port Port
	require.NoError(t, json.Unmarshal(data, &port))
	assert.Equal(t, StateRemoved, port.State)

	assert.Error(t, json.Unmarshal([]byte(`{"state":"GONE"}`), &port))
}

func TestLimit_Clamp(t *testing.T) {
	limit := Limit{Min: 1, Max: 10}
	assert.Equal(t, 1, limit.Clamp(-5))
	assert.Equal(t, 10, limit.Clamp(99))
	assert.Equal(t, 4, limit.Clamp(4))
}
