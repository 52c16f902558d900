package errcode

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	assert.Equal(t, OK, Of(nil))
	assert.Equal(t, NotFound, Of(NotFound))
	assert.Equal(t, IOFailure, Of(Wrap(IOFailure, "append", os.ErrPermission)))
	assert.Equal(t, ClockUnavailable, Of(fmt.Errorf("cycle: %w", Wrap(ClockUnavailable, "stamp", nil))))
	assert.Equal(t, Error, Of(errors.New("boom")))
}

func TestWrapperIsAndUnwrap(t *testing.T) {
	err := fmt.Errorf("clear: %w", Wrap(IOFailure, "rename", os.ErrPermission))

	assert.True(t, errors.Is(err, IOFailure))
	assert.False(t, errors.Is(err, NotFound))
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestErrorString(t *testing.T) {
	e := &E{C: StoreUnavailable, Op: "ensure", Msg: "mount missing"}
	assert.Equal(t, "ensure: store_unavailable: mount missing", e.Error())

	e = Wrap(SensorFailure, "", errors.New("nan"))
	assert.Equal(t, "sensor_failure: nan", e.Error())
}
