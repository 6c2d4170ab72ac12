package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpi3seismo/stationd/internal/dispatch"
	"github.com/rpi3seismo/stationd/internal/frame"
)

func TestPublishFanOutOrderPreserved(t *testing.T) {
	d := dispatch.New(3, 10)

	for i := int32(0); i < 5; i++ {
		d.Publish(frame.SampleFrame{Ch0: i, Ch1: i * 2, Ch2: i * 3})
	}

	for c := 0; c < 3; c++ {
		for i := int32(0); i < 5; i++ {
			select {
			case s := <-d.Channel(c):
				require.Equal(t, i, s.Ch0)
			default:
				t.Fatalf("consumer %d missing sample %d", c, i)
			}
		}
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	d := dispatch.New(1, 2)

	d.Publish(frame.SampleFrame{Ch0: 1})
	d.Publish(frame.SampleFrame{Ch0: 2})
	d.Publish(frame.SampleFrame{Ch0: 3}) // queue full: drop-oldest (1), keep 2,3

	var got []int32
	for {
		select {
		case s := <-d.Channel(0):
			got = append(got, s.Ch0)
			continue
		default:
		}
		break
	}

	assert.Equal(t, []int32{2, 3}, got)
	assert.Equal(t, uint64(1), d.Dropped(0))
}

func TestSlowConsumerDoesNotBlockFastOne(t *testing.T) {
	d := dispatch.New(2, 1)

	// consumer 0 never drains; consumer 1 drains every time.
	for i := int32(0); i < 50; i++ {
		d.Publish(frame.SampleFrame{Ch0: i})
		<-d.Channel(1)
	}

	assert.Greater(t, d.Dropped(0), uint64(0))
}
