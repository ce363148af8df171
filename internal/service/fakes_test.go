package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/config"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
	"github.com/akylbek/payment-system/fraud-orchestrator/internal/repository"
)

type memEntities struct {
	mu       sync.Mutex
	entities map[string]models.FraudEntity
	creates  int
	saves    int
	err      error
}

func newMemEntities() *memEntities {
	return &memEntities{entities: make(map[string]models.FraudEntity)}
}

func (m *memEntities) GetByIncrementID(_ context.Context, incrementID string) (*models.FraudEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entities[incrementID]
	if !ok {
		return nil, repository.ErrEntityNotFound
	}
	return &e, nil
}

func (m *memEntities) Create(_ context.Context, entity *models.FraudEntity) (*models.FraudEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if existing, ok := m.entities[entity.OrderIncrementID]; ok {
		return &existing, nil
	}
	m.creates++
	e := *entity
	e.ID = int64(len(m.entities) + 1)
	e.CreatedAt = time.Now()
	m.entities[e.OrderIncrementID] = e
	return &e, nil
}

func (m *memEntities) Save(_ context.Context, entity *models.FraudEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.entities[entity.OrderIncrementID]; !ok {
		return repository.ErrEntityNotFound
	}
	m.saves++
	m.entities[entity.OrderIncrementID] = *entity
	return nil
}

func (m *memEntities) get(incrementID string) (models.FraudEntity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[incrementID]
	return e, ok
}

type memOrders struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	comments map[string][]string
	mailSent map[string]bool
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders:   make(map[string]models.Order),
		comments: make(map[string][]string),
		mailSent: make(map[string]bool),
	}
}

func (m *memOrders) GetByIncrementID(_ context.Context, incrementID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[incrementID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memOrders) UpsertSnapshot(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.IncrementID]
	if !ok {
		m.orders[order.IncrementID] = *order
		m.mailSent[order.IncrementID] = order.DeclineMailSent
		return nil
	}
	stored.SubPaymentMethod = order.SubPaymentMethod
	stored.CustomerEmail = order.CustomerEmail
	stored.GrandTotal = order.GrandTotal
	stored.Currency = order.Currency
	stored.Payment = order.Payment
	m.orders[order.IncrementID] = stored
	return nil
}

func (m *memOrders) SaveState(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.IncrementID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.State = order.State
	stored.HoldBeforeState = order.HoldBeforeState
	stored.CanSendNewEmail = order.CanSendNewEmail
	m.orders[order.IncrementID] = stored
	return nil
}

func (m *memOrders) AddStatusHistoryComment(_ context.Context, incrementID, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[incrementID]; !ok {
		return repository.ErrOrderNotFound
	}
	m.comments[incrementID] = append(m.comments[incrementID], comment)
	return nil
}

func (m *memOrders) MarkDeclineMailSent(_ context.Context, incrementID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[incrementID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if m.mailSent[incrementID] {
		return false, nil
	}
	m.mailSent[incrementID] = true
	stored.DeclineMailSent = true
	m.orders[incrementID] = stored
	return true, nil
}

func (m *memOrders) seed(order models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.IncrementID] = order
	m.mailSent[order.IncrementID] = order.DeclineMailSent
}

func (m *memOrders) commentsFor(incrementID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.comments[incrementID]...)
}

func (m *memOrders) stored(incrementID string) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[incrementID]
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []models.DeclineMail
	err  error
}

func (f *fakeMailer) SendDeclineMail(_ context.Context, mail models.DeclineMail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, mail)
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	records []models.LogRecord
	// failures is the number of upcoming sends that fail with errBoom.
	failures int
}

func (f *fakeLogs) SendLog(_ context.Context, record models.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errBoom
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeLogs) labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.records))
	for _, r := range f.records {
		labels = append(labels, r.Label)
	}
	return labels
}

type fakeSessions struct {
	messages map[string]string
}

func (f *fakeSessions) SetMessage(_ context.Context, sessionID, message string) error {
	if f.messages == nil {
		f.messages = make(map[string]string)
	}
	f.messages[sessionID] = message
	return nil
}

type fakeDiagnostics struct {
	mu       sync.Mutex
	reported []models.Diagnostic
}

func (f *fakeDiagnostics) Report(_ context.Context, d models.Diagnostic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, d)
	return nil
}

type fakeRisk struct {
	decision     *models.FraudDecision
	err          error
	transactions int
	statuses     []string
}

func (f *fakeRisk) SendTransaction(_ context.Context, _ *models.Order, _ string) (*models.FraudDecision, error) {
	f.transactions++
	return f.decision, f.err
}

func (f *fakeRisk) SendOrderStatus(_ context.Context, _ *models.Order, status string) error {
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, status)
	return nil
}

// fakeLocker maps lock keys to owner tokens.
type fakeLocker struct {
	held       map[string]string
	acquired   int
	releaseErr error
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.acquired++
	token := fmt.Sprintf("token-%d", f.acquired)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) Release(_ context.Context, key, token string) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if f.held[key] != token {
		return errors.New("lock no longer held")
	}
	delete(f.held, key)
	return nil
}

var errBoom = errors.New("boom")

// harness wires every component over in-memory collaborators.
type harness struct {
	entities    *memEntities
	orders      *memOrders
	mailer      *fakeMailer
	logs        *fakeLogs
	sessions    *fakeSessions
	diagnostics *fakeDiagnostics
	actuator    *OrderActuator
	classifier  *EligibilityClassifier
	decisions   *DecisionHandler
}

func newHarness() *harness {
	logger := zap.NewNop()
	h := &harness{
		entities:    newMemEntities(),
		orders:      newMemOrders(),
		mailer:      &fakeMailer{},
		logs:        &fakeLogs{},
		sessions:    &fakeSessions{},
		diagnostics: &fakeDiagnostics{},
	}
	h.actuator = NewOrderActuator(h.orders, h.mailer, logger)
	h.classifier = NewEligibilityClassifier(h.entities, h.actuator, h.logs, logger)
	h.decisions = NewDecisionHandler(h.actuator, h.entities, h.sessions, h.logs, logger)
	return h
}

func (h *harness) orchestrator(cfg config.MerchantConfig, risk interfaces.RiskAPI, locker *fakeLocker) *Orchestrator {
	deps := Dependencies{
		Merchants:   &config.MerchantSettings{Default: cfg},
		Entities:    h.entities,
		Orders:      h.orders,
		Risk:        risk,
		Classifier:  h.classifier,
		Decisions:   h.decisions,
		Actuator:    h.actuator,
		Reporter:    NewOrderStatusReporter(h.entities, risk, h.logs, zap.NewNop()),
		Logs:        h.logs,
		Diagnostics: h.diagnostics,
		Logger:      zap.NewNop(),
	}
	if locker != nil {
		deps.Locker = locker
	}
	return NewOrchestrator(deps)
}

func (h *harness) seedEntity(e models.FraudEntity) {
	h.entities.entities[e.OrderIncrementID] = e
}

// newOrder returns a test order that already exists in the order store.
func (h *harness) newOrder(id string) *models.Order {
	order := testOrder(id)
	h.orders.seed(*order)
	return order
}

func testOrder(id string) *models.Order {
	return &models.Order{
		IncrementID:     id,
		StoreID:         "1",
		State:           models.OrderStateProcessing,
		CustomerEmail:   "shopper@example.com",
		GrandTotal:      120.5,
		Currency:        "USD",
		CanSendNewEmail: true,
		Payment: models.Payment{
			Method:    "credit_card",
			CcType:    "VI",
			CcLast4:   "4242",
			CcTransID: "txn-1",
			Amount:    120.5,
			Currency:  "USD",
		},
	}
}

func postConfig() config.MerchantConfig {
	cfg := config.DefaultMerchantConfig()
	cfg.SiteID = "site-1"
	return cfg
}
