package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookTargets(t *testing.T) {
	global := Webhook{Enabled: true, IsGlobal: true}
	scoped := Webhook{Enabled: true, Groups: []string{"infra"}}
	disabled := Webhook{Enabled: false, IsGlobal: true}

	assert.True(t, global.Targets(""))
	assert.True(t, global.Targets("web"))
	assert.True(t, scoped.Targets("infra"))
	assert.False(t, scoped.Targets("web"))
	assert.False(t, scoped.Targets(""))
	assert.False(t, disabled.Targets("infra"))
}

func TestServiceShownURL(t *testing.T) {
	display := "https://status.example.com"
	empty := ""

	s := Service{URL: "http://10.0.0.5/health"}
	assert.Equal(t, "http://10.0.0.5/health", s.ShownURL())

	s.DisplayURL = &empty
	assert.Equal(t, "http://10.0.0.5/health", s.ShownURL())

	s.DisplayURL = &display
	assert.Equal(t, display, s.ShownURL())
}

func TestServiceGroup(t *testing.T) {
	s := Service{}
	assert.Equal(t, "", s.Group())

	g := "infra"
	s.GroupName = &g
	assert.Equal(t, "infra", s.Group())
}
