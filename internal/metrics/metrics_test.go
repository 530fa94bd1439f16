package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	before := testutil.ToFloat64(checksTotal.WithLabelValues("false"))
	ObserveCheck(false, 250*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(checksTotal.WithLabelValues("false")))

	IncNotification("webhook", "down", errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(notificationsTotal.WithLabelValues("webhook", "down", "error")))

	SetScheduledServices(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(scheduledServices))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
