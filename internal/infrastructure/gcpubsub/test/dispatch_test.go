package gcpubsub_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcpubsub"
)

type ackRecorder struct {
	acked  int
	nacked int
}

func (r *ackRecorder) ack()  { r.acked++ }
func (r *ackRecorder) nack() { r.nacked++ }

func TestDispatchAcksOnSuccess(t *testing.T) {
	rec := &ackRecorder{}
	gcpubsub.Dispatch(context.Background(), &gcpubsub.Message{ID: "1"}, func(context.Context, *gcpubsub.Message) error {
		return nil
	}, rec.ack, rec.nack)
	require.Equal(t, 1, rec.acked)
	require.Zero(t, rec.nacked)
}

func TestDispatchNacksOnError(t *testing.T) {
	rec := &ackRecorder{}
	gcpubsub.Dispatch(context.Background(), &gcpubsub.Message{ID: "2"}, func(context.Context, *gcpubsub.Message) error {
		return errors.New("upstream 500")
	}, rec.ack, rec.nack)
	require.Zero(t, rec.acked)
	require.Equal(t, 1, rec.nacked)
}

func TestDispatchNacksOnPanic(t *testing.T) {
	rec := &ackRecorder{}
	gcpubsub.Dispatch(context.Background(), &gcpubsub.Message{ID: "3"}, func(context.Context, *gcpubsub.Message) error {
		panic("boom")
	}, rec.ack, rec.nack)
	require.Equal(t, 1, rec.nacked)
}
