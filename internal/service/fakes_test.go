package service

import (
	"context"
	"sync"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/certificate"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type memPayments struct {
	mu      sync.Mutex
	byOrder map[string]*models.Payment
	byID    map[string]*models.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{byOrder: map[string]*models.Payment{}, byID: map[string]*models.Payment{}}
}

func (r *memPayments) Create(ctx context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *memPayments) AttachOrder(ctx context.Context, paymentID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[paymentID]
	p.GatewayOrderID = orderID
	r.byOrder[orderID] = p
	return nil
}

func (r *memPayments) MarkFailed(ctx context.Context, paymentID, details string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.byID[paymentID]; p != nil && p.Status == models.StatusPending {
		p.Status = models.StatusFailed
		p.FailureDetails = details
	}
	return nil
}

func (r *memPayments) MarkSuccess(ctx context.Context, orderID, payerID, gatewayPaymentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byOrder[orderID]
	if p == nil || p.UserID != payerID || p.Status == models.StatusSuccess {
		return 0, nil
	}
	p.Status = models.StatusSuccess
	p.GatewayPaymentID = &gatewayPaymentID
	return 1, nil
}

func (r *memPayments) MarkAttempt(ctx context.Context, orderID, payerID string, status models.PaymentStatus, details string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byOrder[orderID]
	if p == nil || p.UserID != payerID || p.Status == models.StatusSuccess {
		return 0, nil
	}
	p.Status = status
	p.FailureDetails = details
	return 1, nil
}

func (r *memPayments) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byOrder[orderID]
	if p == nil {
		return nil, apperr.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) HasSuccessForEvent(ctx context.Context, payerID, eventID string, t models.PaymentType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.UserID == payerID && p.Type == t && p.Status == models.StatusSuccess && p.Context.EventRef() == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPayments) HasAnySuccessForEvent(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Type == models.TypeEventFee && p.Status == models.StatusSuccess && p.Context.EventRef() == eventID {
			return true, nil
		}
	}
	return false, nil
}

// put seeds a payment that already has a gateway order.
func (r *memPayments) put(p models.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = &p
	r.byOrder[p.GatewayOrderID] = &p
}

func (r *memPayments) get(orderID string) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byOrder[orderID]
}

type memEvents struct {
	mu         sync.Mutex
	events     map[string]*models.Event
	perms      map[string]bool
	increments map[string]int
}

func newMemEvents(events ...models.Event) *memEvents {
	r := &memEvents{events: map[string]*models.Event{}, perms: map[string]bool{}, increments: map[string]int{}}
	for i := range events {
		e := events[i]
		r.events[e.ID] = &e
	}
	return r
}

func (r *memEvents) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return nil, apperr.NotFound("event not found")
	}
	cp := *e
	return &cp, nil
}

func (r *memEvents) IncrementParticipants(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments[eventID]++
	if e, ok := r.events[eventID]; ok {
		e.ParticipantCount++
	}
	return nil
}

func (r *memEvents) HasPermission(ctx context.Context, userID, eventID, permission string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[eventID]; ok && e.CoordinatorID == userID {
		return true, nil
	}
	return r.perms[userID+"|"+eventID+"|"+permission], nil
}

func (r *memEvents) grant(userID, eventID, permission string) {
	r.perms[userID+"|"+eventID+"|"+permission] = true
}

type memRegistrations struct {
	mu   sync.Mutex
	regs map[string]*models.EventRegistration
}

func newMemRegistrations(regs ...models.EventRegistration) *memRegistrations {
	r := &memRegistrations{regs: map[string]*models.EventRegistration{}}
	for i := range regs {
		reg := regs[i]
		r.regs[reg.EventID+"|"+reg.StudentID] = &reg
	}
	return r
}

func (r *memRegistrations) Get(ctx context.Context, eventID, studentID string) (*models.EventRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[eventID+"|"+studentID]
	if !ok {
		return nil, apperr.NotFound("registration not found")
	}
	cp := *reg
	return &cp, nil
}

func (r *memRegistrations) ListByStatus(ctx context.Context, eventID string, statuses ...models.RegistrationStatus) ([]models.EventRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EventRegistration
	for _, reg := range r.regs {
		if reg.EventID != eventID {
			continue
		}
		for _, s := range statuses {
			if reg.Status == s {
				out = append(out, *reg)
				break
			}
		}
	}
	return out, nil
}

func (r *memRegistrations) Approve(ctx context.Context, eventID, studentID string, category *string, paymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := eventID + "|" + studentID
	pid := paymentID
	if reg, ok := r.regs[key]; ok {
		reg.Status = models.RegistrationApproved
		reg.PaymentID = &pid
		if category != nil {
			reg.SelectedCategory = category
		}
		return false, nil
	}
	r.regs[key] = &models.EventRegistration{
		ID:               "reg_" + studentID,
		EventID:          eventID,
		StudentID:        studentID,
		Status:           models.RegistrationApproved,
		SelectedCategory: category,
		PaymentID:        &pid,
	}
	return true, nil
}

type memLedger struct {
	mu       sync.Mutex
	rows     map[string]models.EventPayment
	paidAggr map[string]bool
}

func newMemLedger() *memLedger {
	return &memLedger{rows: map[string]models.EventPayment{}, paidAggr: map[string]bool{}}
}

func (l *memLedger) RecordSuccess(ctx context.Context, ep *models.EventPayment) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ep.EventID + "|" + ep.GatewayOrderID
	if _, ok := l.rows[key]; ok {
		return false, nil
	}
	l.rows[key] = *ep
	return true, nil
}

func (l *memLedger) HasSuccess(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range l.rows {
		if row.EventID == eventID && row.Status == models.StatusSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) HasPaidOrder(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paidAggr[eventID], nil
}

type memStudents struct {
	profiles []models.StudentProfile
}

func (r *memStudents) find(match func(models.StudentProfile) bool) (*models.StudentProfile, error) {
	for _, p := range r.profiles {
		if match(p) {
			cp := p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("student not found")
}

func (r *memStudents) GetByID(ctx context.Context, id string) (*models.StudentProfile, error) {
	return r.find(func(p models.StudentProfile) bool { return p.ID == id })
}

func (r *memStudents) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return r.find(func(p models.StudentProfile) bool { return p.UserID == userID })
}

func (r *memStudents) GetByDisplayID(ctx context.Context, displayID string) (*models.StudentProfile, error) {
	return r.find(func(p models.StudentProfile) bool { return p.DisplayID == displayID })
}

type memUsers struct {
	mu          sync.Mutex
	activations []models.PlanActivation
}

func (r *memUsers) ActivatePlan(ctx context.Context, a models.PlanActivation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations = append(r.activations, a)
	return nil
}

type memCertificates struct {
	mu    sync.Mutex
	certs []models.Certificate
}

func (r *memCertificates) Create(ctx context.Context, c *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.certs {
		if existing.UID == c.UID {
			return apperr.ErrAlreadyIssued
		}
	}
	r.certs = append(r.certs, *c)
	return nil
}

func (r *memCertificates) GetByUID(ctx context.Context, uid string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.UID == uid {
			cp := c
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("certificate not found")
}

func (r *memCertificates) ListByEvent(ctx context.Context, eventID string) ([]models.Certificate, error) {
	return r.filter(func(c models.Certificate) bool { return c.EventID == eventID }), nil
}

func (r *memCertificates) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	return r.filter(func(c models.Certificate) bool { return c.StudentID == studentID }), nil
}

func (r *memCertificates) Exists(ctx context.Context, eventID, studentID string, kind models.CertificateKind) (bool, error) {
	return len(r.filter(func(c models.Certificate) bool {
		return c.EventID == eventID && c.StudentID == studentID && c.Kind == kind
	})) > 0, nil
}

func (r *memCertificates) filter(keep func(models.Certificate) bool) []models.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Certificate
	for _, c := range r.certs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// fakeGateway is a func-field stand-in for the payment provider.
type fakeGateway struct {
	CreateOrderFunc        func(amount int64, currency, receipt string, notes map[string]string) (*interfaces.GatewayOrder, error)
	FetchOrderFunc         func(orderID string) (*interfaces.GatewayOrder, error)
	FetchOrderPaymentsFunc func(orderID string) ([]interfaces.GatewayPayment, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*interfaces.GatewayOrder, error) {
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(amount, currency, receipt, notes)
	}
	return &interfaces.GatewayOrder{ID: "order_test", Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, orderID string) (*interfaces.GatewayOrder, error) {
	return g.FetchOrderFunc(orderID)
}

func (g *fakeGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]interfaces.GatewayPayment, error) {
	return g.FetchOrderPaymentsFunc(orderID)
}

type recordingPublisher struct {
	mu          sync.Mutex
	transitions []models.PaymentStatus
	issued      []string
}

func (p *recordingPublisher) PaymentTransitioned(ctx context.Context, payment *models.Payment, from, to models.PaymentStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, to)
	return nil
}

func (p *recordingPublisher) CertificateIssued(ctx context.Context, c *models.Certificate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued = append(p.issued, c.UID)
	return nil
}

// stubBulk issues every item without rendering.
type stubBulk struct {
	certs *memCertificates
	calls int
}

func (b *stubBulk) IssueMany(ctx context.Context, items []certificate.IssueRequest) certificate.BulkResult {
	b.calls++
	result := certificate.BulkResult{Results: []models.Certificate{}, Errors: []certificate.ItemError{}}
	for _, item := range items {
		var (
			uid string
			err error
		)
		if item.Kind == models.KindWinner {
			uid, err = certificate.WinnerUID("SPT", item.Event.DisplayID, item.Student.DisplayID, item.Position)
		} else {
			uid, err = certificate.StandardUID("SPT", item.Event.DisplayID, item.Student.DisplayID)
		}
		if err == nil {
			c := models.Certificate{UID: uid, StudentID: item.Student.ID, EventID: item.Event.ID, Kind: item.Kind}
			if err = b.certs.Create(ctx, &c); err == nil {
				result.Results = append(result.Results, c)
				continue
			}
		}
		result.Errors = append(result.Errors, certificate.ItemError{StudentID: item.Student.ID, Error: err.Error()})
	}
	return result
}
