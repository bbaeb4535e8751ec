package inbound

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/events"
	"nurture_backend/internal/nurture/agent"
	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/logger"
)

var testNow = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]repository.Lead
	activity []string
	ops      []string
	// conflictOnce fails the first commit as if a sweep won the race.
	conflictOnce bool
}

func newFakeStore(leads ...repository.Lead) *fakeStore {
	s := &fakeStore{leads: make(map[uuid.UUID]repository.Lead)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *fakeStore) SetInboundReceived(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	lead.HasInboundResponses = true
	lead.UpdatedAt = lead.UpdatedAt.Add(time.Minute)
	s.leads[id] = lead
	s.ops = append(s.ops, "set_inbound_received")
	return lead, nil
}

func (s *fakeStore) CommitNurture(ctx context.Context, id uuid.UUID, expectedUpdatedAt time.Time, u repository.NurtureUpdate) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	if s.conflictOnce {
		s.conflictOnce = false
		lead.UpdatedAt = lead.UpdatedAt.Add(30 * time.Second)
		s.leads[id] = lead
		return repository.Lead{}, repository.ErrConflict
	}
	if !lead.UpdatedAt.Equal(expectedUpdatedAt) {
		return repository.Lead{}, repository.ErrConflict
	}
	lead.Stage = u.Stage
	lead.ContactCount = u.ContactCount
	lead.LastContactAt = u.LastContactAt
	lead.LastChannel = u.LastChannel
	lead.NextActionAt = u.NextActionAt
	lead.UpdatedAt = expectedUpdatedAt.Add(time.Minute)
	s.leads[id] = lead
	s.ops = append(s.ops, "commit")
	return lead, nil
}

func (s *fakeStore) AppendActivity(ctx context.Context, leadID uuid.UUID, level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, message)
	return nil
}

func (s *fakeStore) lead(t *testing.T, id uuid.UUID) repository.Lead {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		t.Fatalf("lead %s missing from store", id)
	}
	return lead
}

type fakeClassifier struct {
	intent string
	err    error
	onCall func()
}

func (f *fakeClassifier) Classify(ctx context.Context, leadID uuid.UUID, channel, text string) (agent.IntentResult, error) {
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return agent.IntentResult{}, f.err
	}
	return agent.IntentResult{Intent: f.intent, Reason: "test"}, nil
}

type fakeEmailSender struct {
	mu      sync.Mutex
	calls   int
	to      string
	subject string
	body    string
	err     error
}

func (f *fakeEmailSender) SendNurtureMessage(ctx context.Context, toEmail, subject, bodyText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to, f.subject, f.body = toEmail, subject, bodyText
	if f.err != nil {
		return "", f.err
	}
	return "delivery-1", nil
}

type fakeTextSender struct {
	mu      sync.Mutex
	calls   int
	phone   string
	message string
	err     error
}

func (f *fakeTextSender) SendMessage(ctx context.Context, phoneNumber, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.phone, f.message = phoneNumber, message
	if f.err != nil {
		return "", f.err
	}
	return "delivery-2", nil
}

type fakeBooker struct {
	mu    sync.Mutex
	calls int
	slots []time.Time
	err   error
}

func (f *fakeBooker) ProposeSlots(ctx context.Context, leadID uuid.UUID, leadName string, slots []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.slots = slots
	return f.err
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(eventName string, handler events.Handler) {}

func (b *fakeBus) has(eventName string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.published {
		if e.EventName() == eventName {
			return true
		}
	}
	return false
}

type routerFixture struct {
	router     *Router
	store      *fakeStore
	classifier *fakeClassifier
	email      *fakeEmailSender
	sms        *fakeTextSender
	wa         *fakeTextSender
	booker     *fakeBooker
	bus        *fakeBus
}

func newTestRouter(t *testing.T, store *fakeStore, classifier *fakeClassifier) *routerFixture {
	t.Helper()
	pb, err := playbook.Load("")
	if err != nil {
		t.Fatalf("playbook.Load() error: %v", err)
	}
	f := &routerFixture{
		store:      store,
		classifier: classifier,
		email:      &fakeEmailSender{},
		sms:        &fakeTextSender{},
		wa:         &fakeTextSender{},
		booker:     &fakeBooker{},
		bus:        &fakeBus{},
	}
	f.router = &Router{
		store:      store,
		classifier: classifier,
		playbook:   pb,
		senders:    Senders{Email: f.email, SMS: f.sms, WhatsApp: f.wa},
		booker:     f.booker,
		eventBus:   f.bus,
		log:        logger.New("development"),
		quiet: domain.QuietHours{
			Enabled:   true,
			StartHour: 21,
			EndHour:   9,
			Location:  time.UTC,
		},
		loc: time.UTC,
		now: func() time.Time { return testNow },
	}
	return f
}

func testLead(stage string, contactCount int) repository.Lead {
	email := "jan@example.com"
	phone := "+31612345678"
	due := testNow.Add(2 * time.Hour)
	return repository.Lead{
		ID:           uuid.New(),
		Name:         "Jan de Vries",
		Email:        &email,
		Phone:        &phone,
		Stage:        stage,
		ContactCount: contactCount,
		NextActionAt: &due,
		CreatedAt:    testNow.Add(-72 * time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	}
}

func TestHandleInboundNotInterested(t *testing.T) {
	lead := testLead(domain.StageContacted, 2)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentNotInterested})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelWhatsApp, "Stop maar, geen interesse meer.")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.Intent != domain.IntentNotInterested || res.NewStage != domain.StageNotInterested {
		t.Fatalf("result = %+v, want not_interested/not_interested", res)
	}
	if !res.AutoReplySent || res.Escalated {
		t.Fatalf("result = %+v, want farewell sent without escalation", res)
	}

	got := store.lead(t, lead.ID)
	if !got.HasInboundResponses {
		t.Error("responder flag not set")
	}
	if got.NextActionAt != nil {
		t.Errorf("terminal lead still scheduled at %v", got.NextActionAt)
	}
	if f.wa.calls != 1 {
		t.Fatalf("whatsapp sends = %d, want farewell on arrival channel", f.wa.calls)
	}
	if !strings.Contains(f.wa.message, "Beste Jan de Vries") {
		t.Errorf("farewell %q does not greet the lead", f.wa.message)
	}
	if !f.bus.has("nurture.lead.completed") {
		t.Error("expected nurture.lead.completed event")
	}
}

func TestHandleInboundBookProposesSlots(t *testing.T) {
	lead := testLead(domain.StageEngaged, 3)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentBook})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Ja, ik wil graag een bezichtiging plannen.")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.NewStage != domain.StageAppointmentProposed || !res.AutoReplySent {
		t.Fatalf("result = %+v, want appointment_proposed with reply", res)
	}

	got := store.lead(t, lead.ID)
	wantNext := testNow.Add(24 * time.Hour)
	if got.NextActionAt == nil || !got.NextActionAt.Equal(wantNext) {
		t.Errorf("next action = %v, want %v", got.NextActionAt, wantNext)
	}

	if f.booker.calls != 1 {
		t.Fatalf("booker calls = %d, want 1", f.booker.calls)
	}
	wantSlots := []time.Time{
		time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 13, 11, 0, 0, 0, time.UTC),
	}
	if len(f.booker.slots) != len(wantSlots) {
		t.Fatalf("proposed %d slots, want %d", len(f.booker.slots), len(wantSlots))
	}
	for i, want := range wantSlots {
		if !f.booker.slots[i].Equal(want) {
			t.Errorf("slot[%d] = %v, want %v", i, f.booker.slots[i], want)
		}
	}
	if got := strings.Count(f.email.body, "- "); got != 3 {
		t.Errorf("reply lists %d slots, want 3:\n%s", got, f.email.body)
	}
}

func TestHandleInboundAnswersByIntent(t *testing.T) {
	tests := []struct {
		intent    string
		wantStage string
		wantNext  time.Duration
		inBody    string
	}{
		{domain.IntentQuestions, domain.StageEngaged, 3 * 24 * time.Hour, "Beste Jan de Vries"},
		{domain.IntentObjectionBudget, domain.StageEngaged, 3 * 24 * time.Hour, "budget"},
		{domain.IntentObjectionArea, domain.StageEngaged, 3 * 24 * time.Hour, "buurt"},
		{domain.IntentLater, domain.StageNoResponse, 14 * 24 * time.Hour, "Beste Jan de Vries"},
	}

	for _, tt := range tests {
		lead := testLead(domain.StageContacted, 2)
		store := newFakeStore(lead)
		f := newTestRouter(t, store, &fakeClassifier{intent: tt.intent})

		res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Wat is er mogelijk?")
		if err != nil {
			t.Fatalf("%s: HandleInbound() error: %v", tt.intent, err)
		}
		if res.NewStage != tt.wantStage || !res.AutoReplySent {
			t.Errorf("%s: result = %+v, want stage %q with reply", tt.intent, res, tt.wantStage)
		}

		got := store.lead(t, lead.ID)
		wantNext := testNow.Add(tt.wantNext)
		if got.NextActionAt == nil || !got.NextActionAt.Equal(wantNext) {
			t.Errorf("%s: next action = %v, want %v", tt.intent, got.NextActionAt, wantNext)
		}
		if !strings.Contains(strings.ToLower(f.email.body), strings.ToLower(tt.inBody)) {
			t.Errorf("%s: reply %q does not contain %q", tt.intent, f.email.body, tt.inBody)
		}
	}
}

func TestHandleInboundSpamIgnored(t *testing.T) {
	lead := testLead(domain.StageContacted, 2)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentSpam})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "U heeft een prijs gewonnen!!!")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.Intent != domain.IntentSpam || res.NewStage != domain.StageContacted {
		t.Fatalf("result = %+v, want spam with unchanged stage", res)
	}
	if res.AutoReplySent || res.Escalated {
		t.Fatalf("result = %+v, want no reply and no escalation", res)
	}

	got := store.lead(t, lead.ID)
	if got.Stage != domain.StageContacted || got.ContactCount != 2 {
		t.Error("spam changed the lead record")
	}
	if got.NextActionAt == nil || !got.NextActionAt.Equal(*lead.NextActionAt) {
		t.Errorf("spam moved the schedule to %v", got.NextActionAt)
	}
	if !got.HasInboundResponses {
		t.Error("responder flag must be set even for spam")
	}
	if f.email.calls != 0 {
		t.Error("spam received an auto-reply")
	}
	if len(store.activity) != 0 {
		t.Errorf("spam wrote activity lines %v, want none", store.activity)
	}
}

func TestHandleInboundUnknownEscalates(t *testing.T) {
	lead := testLead(domain.StageContacted, 2)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: "complaint"})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Ik heb iets heel anders nodig.")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.Intent != domain.IntentUnknown {
		t.Errorf("intent = %q, want unknown", res.Intent)
	}
	if res.NewStage != domain.StageEngaged || !res.Escalated {
		t.Fatalf("result = %+v, want engaged with escalation", res)
	}
	if res.AutoReplySent || f.email.calls != 0 {
		t.Error("escalated message must not get an auto-reply")
	}
	if !f.bus.has("nurture.inbound.escalated") {
		t.Error("expected nurture.inbound.escalated event")
	}
}

func TestHandleInboundClassifierFailureDefaultsToQuestions(t *testing.T) {
	lead := testLead(domain.StageContacted, 1)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{err: errors.New("model unavailable")})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Kunt u mij meer vertellen?")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.Intent != domain.IntentQuestions || res.NewStage != domain.StageEngaged {
		t.Fatalf("result = %+v, want questions/engaged fallback", res)
	}
	if !res.AutoReplySent {
		t.Error("fallback answer was not sent")
	}
}

func TestHandleInboundQuietHoursSuppressReplyNotTransition(t *testing.T) {
	lead := testLead(domain.StageContacted, 2)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentQuestions})
	f.router.now = func() time.Time {
		return time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC)
	}

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Nog een late vraag.")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.NewStage != domain.StageEngaged {
		t.Errorf("stage = %q, want transition despite quiet hours", res.NewStage)
	}
	if res.AutoReplySent || f.email.calls != 0 {
		t.Error("auto-reply went out during quiet hours")
	}
}

func TestHandleInboundMarksResponderBeforeClassification(t *testing.T) {
	lead := testLead(domain.StageContacted, 1)
	store := newFakeStore(lead)
	classifier := &fakeClassifier{intent: domain.IntentQuestions}
	classifier.onCall = func() {
		store.mu.Lock()
		defer store.mu.Unlock()
		store.ops = append(store.ops, "classify")
	}
	f := newTestRouter(t, store, classifier)

	if _, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Vraagje."); err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.ops) < 2 || store.ops[0] != "set_inbound_received" || store.ops[1] != "classify" {
		t.Fatalf("ops = %v, want responder flag persisted before classification", store.ops)
	}
}

func TestHandleInboundConflictRetriesOnce(t *testing.T) {
	lead := testLead(domain.StageContacted, 2)
	store := newFakeStore(lead)
	store.conflictOnce = true
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentQuestions})

	res, err := f.router.HandleInbound(context.Background(), lead.ID, domain.ChannelEmail, "Wat zijn de opties?")
	if err != nil {
		t.Fatalf("HandleInbound() error: %v", err)
	}
	if res.NewStage != domain.StageEngaged {
		t.Fatalf("stage = %q, want engaged after retry", res.NewStage)
	}
	got := store.lead(t, lead.ID)
	if got.Stage != domain.StageEngaged {
		t.Errorf("stored stage = %q, want engaged", got.Stage)
	}
}

func TestHandleInboundUnknownChannel(t *testing.T) {
	lead := testLead(domain.StageContacted, 1)
	store := newFakeStore(lead)
	f := newTestRouter(t, store, &fakeClassifier{intent: domain.IntentQuestions})

	if _, err := f.router.HandleInbound(context.Background(), lead.ID, "pigeon", "hallo"); err == nil {
		t.Fatal("expected an error for an unknown channel")
	}
	if got := store.lead(t, lead.ID); got.HasInboundResponses {
		t.Error("unknown channel still marked the lead as responder")
	}
}
