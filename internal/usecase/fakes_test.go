package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/pkg/errors"

	"github.com/google/uuid"
)

type fakeMediationRepo struct {
	mu    sync.Mutex
	items map[string]*entity.MediationRequest
	logs  []*entity.MediationLog

	// getOverride simulates a stale read from another process.
	getOverride func(id string) *entity.MediationRequest
	failLists   bool
}

func newFakeMediationRepo() *fakeMediationRepo {
	return &fakeMediationRepo{items: make(map[string]*entity.MediationRequest)}
}

func cloneMediation(m *entity.MediationRequest) *entity.MediationRequest {
	clone := *m
	if m.MediatorAssignedAt != nil {
		t := *m.MediatorAssignedAt
		clone.MediatorAssignedAt = &t
	}
	if m.LastRejection != nil {
		r := *m.LastRejection
		clone.LastRejection = &r
	}
	if m.Resolution != nil {
		r := *m.Resolution
		clone.Resolution = &r
	}
	clone.SubChats = append([]entity.SubChatSummary(nil), m.SubChats...)
	return &clone
}

func (r *fakeMediationRepo) Create(ctx context.Context, m *entity.MediationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	r.items[m.ID] = cloneMediation(m)
	return nil
}

func (r *fakeMediationRepo) GetByID(ctx context.Context, id string) (*entity.MediationRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getOverride != nil {
		if m := r.getOverride(id); m != nil {
			return cloneMediation(m), nil
		}
	}

	m, ok := r.items[id]
	if !ok {
		return nil, errors.NotFound("Mediation", nil)
	}
	return cloneMediation(m), nil
}

func (r *fakeMediationRepo) UpdateWithVersion(ctx context.Context, m *entity.MediationRequest, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[m.ID]
	if !ok {
		return errors.NotFound("Mediation", nil)
	}
	if stored.Version != expectedVersion {
		return errors.VersionConflict("Mediation was modified by another command")
	}

	m.Version = expectedVersion + 1
	r.items[m.ID] = cloneMediation(m)
	return nil
}

func (r *fakeMediationRepo) ListByStatus(ctx context.Context, st entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failLists {
		return nil, 0, errors.Internal("store unavailable", nil)
	}

	var out []*entity.MediationRequest
	for _, m := range r.items {
		if m.Status == st {
			out = append(out, cloneMediation(m))
		}
	}
	return paginateMediations(out, limit, offset)
}

func (r *fakeMediationRepo) ListByMediator(ctx context.Context, mediatorID string, statuses []entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failLists {
		return nil, 0, errors.Internal("store unavailable", nil)
	}

	var out []*entity.MediationRequest
	for _, m := range r.items {
		if m.MediatorID != mediatorID {
			continue
		}
		for _, st := range statuses {
			if m.Status == st {
				out = append(out, cloneMediation(m))
				break
			}
		}
	}
	return paginateMediations(out, limit, offset)
}

func (r *fakeMediationRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failLists {
		return nil, 0, errors.Internal("store unavailable", nil)
	}

	var out []*entity.MediationRequest
	for _, m := range r.items {
		if m.BuyerID == userID || m.SellerID == userID || m.MediatorID == userID {
			out = append(out, cloneMediation(m))
		}
	}
	return paginateMediations(out, limit, offset)
}

func paginateMediations(items []*entity.MediationRequest, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := int64(len(items))
	if offset >= len(items) {
		return []*entity.MediationRequest{}, total, nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *fakeMediationRepo) SetSubChatSummaries(ctx context.Context, mediationID string, summaries []entity.SubChatSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.items[mediationID]
	if !ok {
		return errors.NotFound("Mediation", nil)
	}
	m.SubChats = append([]entity.SubChatSummary(nil), summaries...)
	return nil
}

func (r *fakeMediationRepo) CreateLog(ctx context.Context, log *entity.MediationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeMediationRepo) ListLogsByMediationID(ctx context.Context, mediationID string) ([]*entity.MediationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.MediationLog
	for _, l := range r.logs {
		if l.MediationID == mediationID {
			out = append(out, l)
		}
	}
	return out, nil
}

var _ repository.MediationRepository = (*fakeMediationRepo)(nil)

type fakeSubChatRepo struct {
	mu       sync.Mutex
	subChats map[string]*entity.SubChat
	messages map[string][]*entity.ChatMessage
	failAll  bool
}

func newFakeSubChatRepo() *fakeSubChatRepo {
	return &fakeSubChatRepo{
		subChats: make(map[string]*entity.SubChat),
		messages: make(map[string][]*entity.ChatMessage),
	}
}

func cloneSubChat(s *entity.SubChat) *entity.SubChat {
	clone := *s
	clone.Participants = append([]entity.Participant(nil), s.Participants...)
	return &clone
}

func cloneMessage(m *entity.ChatMessage) *entity.ChatMessage {
	clone := *m
	clone.ReadBy = append([]entity.ReadReceipt(nil), m.ReadBy...)
	return &clone
}

func (r *fakeSubChatRepo) Create(ctx context.Context, subChat *entity.SubChat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAll {
		return errors.Internal("store unavailable", nil)
	}
	if subChat.ID == "" {
		subChat.ID = uuid.New().String()
	}
	r.subChats[subChat.ID] = cloneSubChat(subChat)
	return nil
}

func (r *fakeSubChatRepo) GetByID(ctx context.Context, id string) (*entity.SubChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subChats[id]
	if !ok {
		return nil, errors.NotFound("Channel", nil)
	}
	return cloneSubChat(s), nil
}

func (r *fakeSubChatRepo) Update(ctx context.Context, subChat *entity.SubChat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subChats[subChat.ID]; !ok {
		return errors.NotFound("Channel", nil)
	}
	r.subChats[subChat.ID] = cloneSubChat(subChat)
	return nil
}

func (r *fakeSubChatRepo) ListByMediationID(ctx context.Context, mediationID string) ([]*entity.SubChat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAll {
		return nil, errors.Internal("store unavailable", nil)
	}

	var out []*entity.SubChat
	for _, s := range r.subChats {
		if s.MediationID == mediationID {
			out = append(out, cloneSubChat(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSubChatRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.SubChat, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*entity.SubChat
	for _, s := range r.subChats {
		if s.HasParticipant(userID) {
			out = append(out, cloneSubChat(s))
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []*entity.SubChat{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeSubChatRepo) CreateMessage(ctx context.Context, message *entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages[message.SubChatID] = append(r.messages[message.SubChatID], cloneMessage(message))
	return nil
}

func (r *fakeSubChatRepo) GetMessageByID(ctx context.Context, subChatID, messageID string) (*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages[subChatID] {
		if m.ID == messageID {
			return cloneMessage(m), nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *fakeSubChatRepo) ListMessages(ctx context.Context, subChatID string, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAll {
		return nil, 0, errors.Internal("store unavailable", nil)
	}

	stored := r.messages[subChatID]
	out := make([]*entity.ChatMessage, 0, len(stored))
	for _, m := range stored {
		out = append(out, cloneMessage(m))
	}

	total := int64(len(out))
	if offset > 0 {
		if offset >= len(out) {
			return []*entity.ChatMessage{}, total, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeSubChatRepo) MarkMessagesRead(ctx context.Context, subChatID, readerID, uptoMessageID string, at time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated []string
	for _, m := range r.messages[subChatID] {
		if m.SenderID != readerID && !m.ReadByUser(readerID) {
			m.ReadBy = append(m.ReadBy, entity.ReadReceipt{ReaderID: readerID, ReadAt: at})
			updated = append(updated, m.ID)
		}
		if m.ID == uptoMessageID {
			return updated, nil
		}
	}
	return updated, nil
}

var _ repository.SubChatRepository = (*fakeSubChatRepo)(nil)

type fakeUserRepo struct {
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) ListMediators(ctx context.Context) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.users {
		if u.IsMediator() {
			clone := *u
			out = append(out, &clone)
		}
	}
	return out, nil
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

type fakeProductRepo struct {
	products map[string]*entity.Product
}

func newFakeProductRepo(products ...*entity.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*entity.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	clone := *p
	return &clone, nil
}

var _ repository.ProductRepository = (*fakeProductRepo)(nil)

type fakeHold struct {
	userID string
	amount float64
	status string
}

// fakeLedger tracks balances and holds in memory and counts settlement
// calls.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]float64
	holds    map[string]*fakeHold

	holdCalls    int
	releaseCalls int
	reverseCalls int
	splitCalls   int

	failWith error
	delay    time.Duration
}

func newFakeLedger(balances map[string]float64) *fakeLedger {
	if balances == nil {
		balances = make(map[string]float64)
	}
	return &fakeLedger{
		balances: balances,
		holds:    make(map[string]*fakeHold),
	}
}

func (l *fakeLedger) HoldFunds(ctx context.Context, userID string, amount float64, reference string) (string, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holdCalls++
	if l.failWith != nil {
		return "", l.failWith
	}
	if l.balances[userID] < amount {
		return "", errors.InsufficientFunds("Balance does not cover the agreed price")
	}

	l.balances[userID] -= amount
	ref := uuid.New().String()
	l.holds[ref] = &fakeHold{userID: userID, amount: amount, status: entity.HoldStatusHeld}
	return ref, nil
}

func (l *fakeLedger) ReleaseFunds(ctx context.Context, holdRef, toUserID string) error {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.releaseCalls++
	if l.failWith != nil {
		return l.failWith
	}
	hold, ok := l.holds[holdRef]
	if !ok || hold.status != entity.HoldStatusHeld {
		return errors.InvalidState("Hold is already settled")
	}
	hold.status = entity.HoldStatusReleased
	l.balances[toUserID] += hold.amount
	return nil
}

func (l *fakeLedger) ReverseHold(ctx context.Context, holdRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reverseCalls++
	if l.failWith != nil {
		return l.failWith
	}
	hold, ok := l.holds[holdRef]
	if !ok || hold.status != entity.HoldStatusHeld {
		return errors.InvalidState("Hold is already settled")
	}
	hold.status = entity.HoldStatusReversed
	l.balances[hold.userID] += hold.amount
	return nil
}

func (l *fakeLedger) SplitFunds(ctx context.Context, holdRef, toUserID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.splitCalls++
	if l.failWith != nil {
		return l.failWith
	}
	hold, ok := l.holds[holdRef]
	if !ok || hold.status != entity.HoldStatusHeld {
		return errors.InvalidState("Hold is already settled")
	}
	hold.status = entity.HoldStatusReleased
	half := hold.amount / 2
	l.balances[toUserID] += half
	l.balances[hold.userID] += hold.amount - half
	return nil
}

type broadcastEvent struct {
	room  string
	event string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) BroadcastToRoom(room, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{room: room, event: event})
}

func (b *recordingBroadcaster) eventsFor(room string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if e.room == room {
			out = append(out, e.event)
		}
	}
	return out
}

type notification struct {
	userIDs []string
	kind    string
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []notification
	kinds []string
}

func (n *recordingNotifier) Notify(ctx context.Context, userIDs []string, mediationID, kind, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userIDs: userIDs, kind: kind})
	n.kinds = append(n.kinds, kind)
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	cancelled []string
}

func (s *recordingScheduler) Schedule(mediationID string, assignedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, mediationID)
}

func (s *recordingScheduler) Cancel(mediationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, mediationID)
}
