package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shandysiswandi/mailrelay/internal/relay/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDeliveries(t *testing.T) {
	t.Parallel()

	t.Run("defaults the limit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.repo.items = []entity.Delivery{{ID: 2}, {ID: 1}}
		since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

		got, err := f.uc.ListDeliveries(context.Background(), ListDeliveriesInput{Status: "sent", Since: since})
		require.NoError(t, err)

		assert.Len(t, got, 2)
		assert.Equal(t, entity.DeliveryFilter{Status: entity.DeliverySent, Since: since, Limit: 20}, f.repo.filter)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.uc.ListDeliveries(context.Background(), ListDeliveriesInput{Status: "bounced"})
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})

	t.Run("rejects large limit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		_, err := f.uc.ListDeliveries(context.Background(), ListDeliveriesInput{Limit: 101})
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})

	t.Run("repo failure", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.repo.getErr = errors.New("db down")
		_, err := f.uc.ListDeliveries(context.Background(), ListDeliveriesInput{})
		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestGetDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.items = []entity.Delivery{{ID: 7, Status: entity.DeliveryFailed}}

	got, err := f.uc.GetDelivery(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliveryFailed, got.Status)

	_, err = f.uc.GetDelivery(context.Background(), 8)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = f.uc.GetDelivery(context.Background(), 0)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	f.repo.getErr = errors.New("db down")
	_, err = f.uc.GetDelivery(context.Background(), 7)
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}
