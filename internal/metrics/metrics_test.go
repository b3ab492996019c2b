package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecordersAreSafe(t *testing.T) {
	var s *Submit
	var l *Ledger
	var srv *Server

	assert.NotPanics(t, func() {
		s.Round("vote", "ok")
		s.Outcome("vote", "confirmed", 1, time.Second)
		l.Grant("tweet", "granted")
		l.Claim("ok")
		srv.Request("/api/getRewards", 200, time.Millisecond)
	})
}

func TestSubmit_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSubmit(reg)

	m.Round("vote", "transient")
	m.Round("vote", "transient")
	m.Round("vote", "confirmed")
	m.Outcome("vote", "confirmed", 2, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rounds.WithLabelValues("vote", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("vote", "confirmed")))

	n, err := testutil.GatherAndCount(reg, "txrelay_submit_rounds_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLedgerAndServer_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewLedger(reg)
	s := NewServer(reg)

	l.Grant("tweet", "granted")
	l.Grant("tweet", "duplicate")
	s.Request("/api/recordTweetReward", 409, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(l.grants.WithLabelValues("tweet", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("/api/recordTweetReward", "4xx")))
}
