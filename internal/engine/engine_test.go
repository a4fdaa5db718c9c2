package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lockerhub/lockerhub-core/internal/activity"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/config"
	"github.com/lockerhub/lockerhub-core/internal/infrastructure/mqtt"
	"github.com/lockerhub/lockerhub-core/internal/locker"
	"github.com/lockerhub/lockerhub-core/internal/member"
)

// mockLockerRepo is an in-memory locker.Repository.
type mockLockerRepo struct {
	mu      sync.Mutex
	lockers map[string]*locker.Locker
}

func newMockLockerRepo() *mockLockerRepo {
	return &mockLockerRepo{lockers: make(map[string]*locker.Locker)}
}

func (m *mockLockerRepo) GetByID(_ context.Context, id string) (*locker.Locker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lockers[id]; ok {
		cpy := *l
		return &cpy, nil
	}
	return nil, locker.ErrLockerNotFound
}

func (m *mockLockerRepo) GetByName(_ context.Context, name string) (*locker.Locker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lockers {
		if l.Name == name {
			cpy := *l
			return &cpy, nil
		}
	}
	return nil, locker.ErrLockerNotFound
}

func (m *mockLockerRepo) List(_ context.Context) ([]locker.Locker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]locker.Locker, 0, len(m.lockers))
	for _, l := range m.lockers {
		out = append(out, *l)
	}
	return out, nil
}

func (m *mockLockerRepo) ListByStatus(_ context.Context, status locker.Status) ([]locker.Locker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []locker.Locker
	for _, l := range m.lockers {
		if l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockLockerRepo) Create(_ context.Context, l *locker.Locker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.lockers[l.ID]; exists {
		return locker.ErrLockerExists
	}
	for _, existing := range m.lockers {
		if existing.Name == l.Name {
			return locker.ErrLockerExists
		}
	}
	cpy := *l
	m.lockers[l.ID] = &cpy
	return nil
}

func (m *mockLockerRepo) Update(_ context.Context, l *locker.Locker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.lockers[l.ID]; !exists {
		return locker.ErrLockerNotFound
	}
	cpy := *l
	m.lockers[l.ID] = &cpy
	return nil
}

func (m *mockLockerRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.lockers[id]; !exists {
		return locker.ErrLockerNotFound
	}
	delete(m.lockers, id)
	return nil
}

func (m *mockLockerRepo) UpdateHeartbeat(_ context.Context, id, ip string, uptime int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lockers[id]
	if !ok {
		return locker.ErrLockerNotFound
	}
	l.IPAddress = ip
	l.UptimeSeconds = uptime
	l.Online = true
	hb := at.UTC()
	l.LastHeartbeatAt = &hb
	return nil
}

func (m *mockLockerRepo) SetOnline(_ context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lockers[id]
	if !ok {
		return locker.ErrLockerNotFound
	}
	l.Online = online
	return nil
}

// mockMemberRepo is an in-memory member.Repository.
type mockMemberRepo struct {
	mu      sync.Mutex
	members map[string]*member.Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]*member.Member)}
}

func (m *mockMemberRepo) GetByID(_ context.Context, id string) (*member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem, ok := m.members[id]; ok {
		cpy := *mem
		return &cpy, nil
	}
	return nil, member.ErrMemberNotFound
}

func (m *mockMemberRepo) GetByRFIDTag(_ context.Context, tag string) (*member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.RFIDTag != nil && *mem.RFIDTag == tag {
			cpy := *mem
			return &cpy, nil
		}
	}
	return nil, member.ErrMemberNotFound
}

func (m *mockMemberRepo) GetByAssignedLocker(_ context.Context, lockerID string) (*member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.AssignedLockerID != nil && *mem.AssignedLockerID == lockerID {
			cpy := *mem
			return &cpy, nil
		}
	}
	return nil, member.ErrMemberNotFound
}

func (m *mockMemberRepo) List(_ context.Context) ([]member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]member.Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, *mem)
	}
	return out, nil
}

func (m *mockMemberRepo) ListAssigned(_ context.Context) ([]member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []member.Member
	for _, mem := range m.members {
		if mem.AssignedLockerID != nil {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) ListExpired(_ context.Context, before time.Time) ([]member.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []member.Member
	for _, mem := range m.members {
		if mem.AssignedLockerID != nil && mem.ValidUntil != nil && mem.ValidUntil.Before(before) {
			out = append(out, *mem)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) Create(_ context.Context, mem *member.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.members[mem.ID]; exists {
		return member.ErrMemberExists
	}
	if mem.RFIDTag != nil {
		for _, existing := range m.members {
			if existing.RFIDTag != nil && *existing.RFIDTag == *mem.RFIDTag {
				return member.ErrTagConflict
			}
		}
	}
	cpy := *mem
	m.members[mem.ID] = &cpy
	return nil
}

func (m *mockMemberRepo) Update(_ context.Context, mem *member.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.members[mem.ID]; !exists {
		return member.ErrMemberNotFound
	}
	cpy := *mem
	m.members[mem.ID] = &cpy
	return nil
}

func (m *mockMemberRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.members[id]; !exists {
		return member.ErrMemberNotFound
	}
	delete(m.members, id)
	return nil
}

// mockGroupRepo is an in-memory locker.GroupRepository.
type mockGroupRepo struct {
	mu     sync.Mutex
	groups map[string]*locker.Group
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{groups: make(map[string]*locker.Group)}
}

func (m *mockGroupRepo) GetByID(_ context.Context, id string) (*locker.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.groups[id]; ok {
		return g.DeepCopy(), nil
	}
	return nil, locker.ErrGroupNotFound
}

func (m *mockGroupRepo) List(_ context.Context) ([]locker.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]locker.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, *g.DeepCopy())
	}
	return out, nil
}

func (m *mockGroupRepo) GetForLocker(_ context.Context, lockerID string) (*locker.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Contains(lockerID) {
			return g.DeepCopy(), nil
		}
	}
	return nil, locker.ErrGroupNotFound
}

func (m *mockGroupRepo) Create(_ context.Context, g *locker.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g.DeepCopy()
	return nil
}

func (m *mockGroupRepo) Update(_ context.Context, g *locker.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[g.ID]; !exists {
		return locker.ErrGroupNotFound
	}
	m.groups[g.ID] = g.DeepCopy()
	return nil
}

func (m *mockGroupRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[id]; !exists {
		return locker.ErrGroupNotFound
	}
	delete(m.groups, id)
	return nil
}

// recordingActivity captures appended activity entries.
type recordingActivity struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recordingActivity) Create(_ context.Context, entry *activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID("act")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingActivity) List(_ context.Context, _ activity.Filter) (*activity.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]activity.Entry, len(r.entries))
	copy(entries, r.entries)
	return &activity.ListResult{Entries: entries, Total: len(entries)}, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *recordingActivity) entriesFor(action string) []activity.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []activity.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingActivity) hasAction(action string) bool {
	for _, a := range r.actions() {
		if a == action {
			return true
		}
	}
	return false
}

// publishedMessage is one captured transport publish.
type publishedMessage struct {
	Topic   string
	Payload map[string]any
}

// mockTransport captures publishes and simulates connection state.
type mockTransport struct {
	mu        sync.Mutex
	connected bool
	published []publishedMessage
}

func newMockTransport() *mockTransport {
	return &mockTransport{connected: true}
}

func (m *mockTransport) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return mqtt.ErrNotConnected
	}
	var doc map[string]any
	_ = json.Unmarshal(payload, &doc)
	m.published = append(m.published, publishedMessage{Topic: topic, Payload: doc})
	return nil
}

func (m *mockTransport) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) error {
	return nil
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) setConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *mockTransport) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// commandsOfType filters captured publishes by their cmd field.
func (m *mockTransport) commandsOfType(cmd string) []publishedMessage {
	var out []publishedMessage
	for _, msg := range m.messages() {
		if msg.Payload != nil && msg.Payload["cmd"] == cmd {
			out = append(out, msg)
		}
	}
	return out
}

// recordingNotifier captures emitted change notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(event string, _ any) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

// testFixture bundles an engine with its mocked collaborators.
type testFixture struct {
	engine    *Engine
	lockers   *mockLockerRepo
	registry  *locker.Registry
	members   *mockMemberRepo
	groups    *mockGroupRepo
	activity  *recordingActivity
	transport *mockTransport
	notifier  *recordingNotifier
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		AssignmentTTLHours:  24,
		OfflineAfterSeconds: 90,
		ExpirySweepSeconds:  60,
		OfflineSweepSeconds: 30,
		UnlockDelayOwnMS:    0,
		UnlockDelayRemoteMS: 0,
		MaxPayloadBytes:     4096,
	}
}

func newTestFixture() *testFixture {
	lockerRepo := newMockLockerRepo()
	registry := locker.NewRegistry(lockerRepo)
	members := newMockMemberRepo()
	groups := newMockGroupRepo()
	activityRepo := &recordingActivity{}
	transport := newMockTransport()
	notifier := &recordingNotifier{}

	e := New(testEngineConfig(), registry, groups, members, activityRepo, transport)
	e.SetNotifier(notifier)

	return &testFixture{
		engine:    e,
		lockers:   lockerRepo,
		registry:  registry,
		members:   members,
		groups:    groups,
		activity:  activityRepo,
		transport: transport,
		notifier:  notifier,
	}
}

// addLocker seeds a locker through the registry so the cache is warm.
func (f *testFixture) addLocker(id, name, topic, ip string, status locker.Status) *locker.Locker {
	l := &locker.Locker{
		ID:        id,
		Name:      name,
		Topic:     topic,
		IPAddress: ip,
		LockIndex: 1,
		Status:    status,
		Online:    true,
		Metadata:  map[string]any{},
	}
	if err := f.registry.CreateLocker(context.Background(), l); err != nil {
		panic(err)
	}
	return l
}

// addMember seeds a member with an optional tag.
func (f *testFixture) addMember(id, name, tag string) *member.Member {
	m := &member.Member{ID: id, Name: name, Role: member.RoleMember}
	if tag != "" {
		m.RFIDTag = &tag
	}
	if err := f.members.Create(context.Background(), m); err != nil {
		panic(err)
	}
	return m
}

// heartbeatJSON builds a heartbeat payload.
func heartbeatJSON(hostname, ip string, uptime, numlocks int) []byte {
	doc := map[string]any{
		"type":           "heartbeat",
		"controllertype": "locker",
		"hostname":       hostname,
		"ip":             ip,
		"uptime":         uptime,
	}
	if numlocks > 0 {
		doc["numlocks"] = numlocks
	}
	b, _ := json.Marshal(doc)
	return b
}

// accessLogJSON builds a direct access-log record.
func accessLogJSON(uid, door, isKnown, access string) []byte {
	b, _ := json.Marshal(map[string]any{
		"cmd":     "log",
		"type":    "access",
		"uid":     uid,
		"door":    door,
		"isKnown": isKnown,
		"access":  access,
	})
	return b
}

// warnEventJSON builds a warning-event access record.
func warnEventJSON(door, data string) []byte {
	b, _ := json.Marshal(map[string]any{
		"cmd":  "event",
		"type": "WARN",
		"src":  "rfid",
		"door": door,
		"data": data,
	})
	return b
}
