package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestPingAllHealthy(t *testing.T) {
	err := Ping(context.Background(), map[string]Pinger{
		"source": pinger{},
		"target": pinger{},
	})
	assert.NoError(t, err)
}

func TestPingReportsFailure(t *testing.T) {
	err := Ping(context.Background(), map[string]Pinger{
		"source": pinger{},
		"target": pinger{err: errors.New("connection refused")},
	})
	assert.ErrorContains(t, err, "can't ping target : connection refused")
}
