package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
)

func TestOrderActuator_SendDeclineMailUnknownOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE sales_orders SET decline_mail_sent = TRUE").
		WithArgs("600000001").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("600000001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mailer := &fakeMailer{}
	actuator := NewOrderActuator(repository.NewOrderRepository(db), mailer, zap.NewNop())

	err = actuator.SendDeclineMail(context.Background(), testOrder("600000001"))
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Empty(t, mailer.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderActuator_RejectsUnknownOrders(t *testing.T) {
	h := newHarness()
	order := testOrder("600000002")
	ctx := context.Background()

	assert.ErrorIs(t, h.actuator.SendDeclineMail(ctx, order), repository.ErrOrderNotFound)
	assert.ErrorIs(t, h.actuator.Hold(ctx, order), repository.ErrOrderNotFound)
	assert.ErrorIs(t, h.actuator.AppendComment(ctx, order, "note"), repository.ErrOrderNotFound)
	assert.Empty(t, h.mailer.sent)
}

func TestOrderActuator_SendDeclineMailOnce(t *testing.T) {
	h := newHarness()
	order := h.newOrder("600000003")
	ctx := context.Background()

	require.NoError(t, h.actuator.SendDeclineMail(ctx, order))
	require.NoError(t, h.actuator.SendDeclineMail(ctx, order))

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "shopper@example.com", h.mailer.sent[0].CustomerEmail)
	assert.True(t, order.DeclineMailSent)
	assert.True(t, h.orders.stored(order.IncrementID).DeclineMailSent)
}

func TestOrderActuator_Hold(t *testing.T) {
	h := newHarness()
	order := h.newOrder("600000004")
	ctx := context.Background()

	require.NoError(t, h.actuator.Hold(ctx, order))
	assert.Equal(t, models.OrderStateHolded, h.orders.stored(order.IncrementID).State)

	require.NoError(t, h.actuator.Hold(ctx, order))
	assert.Equal(t, models.OrderStateProcessing, order.HoldBeforeState)
}
