package voting

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memTickets struct {
	mu        sync.Mutex
	next      uint64
	tickets   map[uint64]*Ticket
	evidence  map[uint64]*EvidenceVote
	createErr error
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: map[uint64]*Ticket{}, evidence: map[uint64]*EvidenceVote{}}
}

func (m *memTickets) CreateTicket(_ context.Context, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.next++
	t.ID = m.next
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memTickets) Ticket(_ context.Context, id uint64) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTickets) ActiveTicketByChannel(_ context.Context, channelID string) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.TicketChannelID == channelID && t.Status == StatusActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotVotingTicket
}

func (m *memTickets) TicketByPollMessage(_ context.Context, messageID string) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.PollMessageID == messageID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTicketNotFound
}

func (m *memTickets) ExpiredTickets(_ context.Context, now time.Time) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Ticket
	for _, t := range m.tickets {
		if t.Status == StatusActive && t.ExpiresAt.Before(now) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTickets) FinalizeTicket(_ context.Context, id uint64, result string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.Status != StatusActive {
		return false, nil
	}
	t.Status = StatusCompleted
	t.FinalResult = result
	t.CompletedAt = &at
	return true, nil
}

func (m *memTickets) CreateEvidence(_ context.Context, v *EvidenceVote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	v.ID = m.next
	cp := *v
	m.evidence[v.ID] = &cp
	return nil
}

func (m *memTickets) Evidence(_ context.Context, id uint64) (*EvidenceVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.evidence[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memTickets) ExpiredEvidence(_ context.Context, now time.Time) ([]EvidenceVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EvidenceVote
	for _, v := range m.evidence {
		if v.Status == StatusActive && v.ExpiresAt.Before(now) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTickets) FinalizeEvidence(_ context.Context, id uint64, result string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.evidence[id]
	if !ok || v.Status != StatusActive {
		return false, nil
	}
	v.Status = StatusCompleted
	v.FinalResult = result
	v.CompletedAt = &at
	return true, nil
}

// memLists mirrors listing.Store semantics over slices.
type memLists struct {
	mu      sync.Mutex
	people  map[listing.List][]listing.Person
	orgs    map[listing.List][]listing.Organization
	inserts int
	deletes int
	// nationErr fails nation lookups.
	nationErr error
}

func newMemLists() *memLists {
	return &memLists{people: map[listing.List][]listing.Person{}, orgs: map[listing.List][]listing.Organization{}}
}

func (m *memLists) findIn(list listing.List, id string) (int, bool) {
	for i, p := range m.people[list] {
		if p.DiscordID == id {
			return i, true
		}
	}
	if p, ok := listing.FirstByAlias(m.people[list], id); ok {
		for i := range m.people[list] {
			if m.people[list][i].ID == p.ID {
				return i, true
			}
		}
	}
	return -1, false
}

func (m *memLists) FindPerson(ctx context.Context, id string) (*listing.PersonMatch, error) {
	for _, list := range []listing.List{listing.Blacklist, listing.Greylist} {
		if p, err := m.FindPersonIn(ctx, list, id); err == nil {
			return &listing.PersonMatch{Person: *p, List: list}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonIn(_ context.Context, list listing.List, id string) (*listing.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return nil, listing.ErrNotFound
	}
	if i, ok := m.findIn(list, id); ok {
		p := m.people[list][i]
		return &p, nil
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonByNation(ctx context.Context, term string) (*listing.PersonMatch, error) {
	if m.nationErr != nil {
		return nil, m.nationErr
	}
	for _, list := range []listing.List{listing.Blacklist, listing.Greylist} {
		if p, err := m.FindPersonByNationIn(ctx, list, listing.ParseNationID(term)); err == nil {
			return &listing.PersonMatch{Person: *p, List: list}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonByNationIn(_ context.Context, list listing.List, nation string) (*listing.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people[list] {
		if nation != "" && p.NationID == nation {
			p := p
			return &p, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindOrganization(ctx context.Context, name string) (*listing.OrgMatch, error) {
	for _, list := range []listing.List{listing.Blacklist, listing.Greylist} {
		if o, err := m.FindOrganizationIn(ctx, list, name); err == nil {
			return &listing.OrgMatch{Organization: *o, List: list}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindOrganizationIn(_ context.Context, list listing.List, name string) (*listing.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orgs[list] {
		if name != "" && strings.Contains(strings.ToLower(o.CompanyName), strings.ToLower(name)) {
			o := o
			return &o, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) InsertPerson(_ context.Context, list listing.List, p *listing.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	p.ID = uint64(m.inserts)
	m.people[list] = append(m.people[list], *p)
	return nil
}

func (m *memLists) InsertOrganization(_ context.Context, list listing.List, o *listing.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	o.ID = uint64(m.inserts)
	m.orgs[list] = append(m.orgs[list], *o)
	return nil
}

func (m *memLists) DeletePerson(_ context.Context, list listing.List, id string) (*listing.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.findIn(list, id)
	if !ok {
		return nil, listing.ErrNotFound
	}
	p := m.people[list][i]
	m.people[list] = append(m.people[list][:i], m.people[list][i+1:]...)
	m.deletes++
	return &p, nil
}

func (m *memLists) DeletePersonByNation(_ context.Context, list listing.List, nation string) (*listing.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.people[list] {
		if nation != "" && p.NationID == nation {
			m.people[list] = append(m.people[list][:i], m.people[list][i+1:]...)
			m.deletes++
			return &p, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) DeleteOrganization(_ context.Context, list listing.List, name string) (*listing.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.orgs[list] {
		if strings.Contains(strings.ToLower(o.CompanyName), strings.ToLower(name)) {
			m.orgs[list] = append(m.orgs[list][:i], m.orgs[list][i+1:]...)
			m.deletes++
			return &o, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts + m.deletes
}

type fakeSurface struct {
	mu      sync.Mutex
	next    int
	polls   map[string]*PollSnapshot
	voters  map[string]map[int][]string
	readErr map[string]error
	// votersErr fails every voter lookup.
	votersErr error
	panicOn   map[string]bool
	pinned    []string
	created   []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		polls:   map[string]*PollSnapshot{},
		voters:  map[string]map[int][]string{},
		readErr: map[string]error{},
		panicOn: map[string]bool{},
	}
}

func (f *fakeSurface) CreatePoll(_ context.Context, channelID, question string, answers []Answer, _ time.Duration, _ *Message) (PollRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("msg-%d", f.next)
	snap := &PollSnapshot{Question: question}
	for i, a := range answers {
		snap.Answers = append(snap.Answers, PollAnswer{ID: i + 1, Label: a.Label, Emoji: a.Emoji})
	}
	f.polls[id] = snap
	f.created = append(f.created, id)
	return PollRef{ChannelID: channelID, MessageID: id}, nil
}

// setCounts sets answer counts in creation order.
func (f *fakeSurface) setCounts(messageID string, counts ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range counts {
		f.polls[messageID].Answers[i].Count = c
	}
}

func (f *fakeSurface) ReadPoll(_ context.Context, ref PollRef) (*PollSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[ref.MessageID] {
		panic("surface exploded")
	}
	if err := f.readErr[ref.MessageID]; err != nil {
		return nil, err
	}
	p, ok := f.polls[ref.MessageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *p
	cp.Answers = append([]PollAnswer(nil), p.Answers...)
	return &cp, nil
}

func (f *fakeSurface) Voters(_ context.Context, ref PollRef, answerID int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votersErr != nil {
		return nil, f.votersErr
	}
	return f.voters[ref.MessageID][answerID], nil
}

func (f *fakeSurface) Pin(_ context.Context, ref PollRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, ref.MessageID)
	return nil
}

type sent struct {
	ChannelID string
	Msg       Message
}

type fakeChannels struct {
	mu       sync.Mutex
	next     int
	channels map[string]bool
	sent     []sent
	dms      []string
	deleted  []string
	members  []string
	history  []HistoryMessage
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{channels: map[string]bool{}}
}

func (f *fakeChannels) CreateRestrictedChannel(_ context.Context, name, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("chan-%d-%s", f.next, name)
	f.channels[id] = true
	return id, nil
}

func (f *fakeChannels) ChannelExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[id], nil
}

func (f *fakeChannels) Send(_ context.Context, id string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ChannelID: id, Msg: msg})
	return nil
}

func (f *fakeChannels) SendFile(ctx context.Context, id string, msg Message, _ File) error {
	return f.Send(ctx, id, msg)
}

func (f *fakeChannels) DeleteChannel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeChannels) DirectMessage(_ context.Context, userID string, _ Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, userID)
	return nil
}

func (f *fakeChannels) RoleMembers(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members...), nil
}

func (f *fakeChannels) History(context.Context, string) ([]HistoryMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]HistoryMessage(nil), f.history...), nil
}

func (f *fakeChannels) drop(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
}

type memAudit struct {
	mu          sync.Mutex
	events      []Event
	transcripts []Transcript
}

func (a *memAudit) Record(_ context.Context, e Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *memAudit) Transcript(_ context.Context, t Transcript) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transcripts = append(a.transcripts, t)
	return nil
}

func (a *memAudit) count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type denyLocker struct{}

func (denyLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

type harness struct {
	cfg       Config
	deps      Deps
	clock     *fixedClock
	tickets   *memTickets
	lists     *memLists
	surface   *fakeSurface
	channels  *fakeChannels
	audit     *memAudit
	builder   *Builder
	engine    *Engine
	scheduler *Scheduler
	teardowns []string
}

func newHarness() *harness {
	h := &harness{
		clock:    &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		tickets:  newMemTickets(),
		lists:    newMemLists(),
		surface:  newFakeSurface(),
		channels: newFakeChannels(),
		audit:    &memAudit{},
	}
	deps := Deps{
		Tickets:  h.tickets,
		Lists:    h.lists,
		Surface:  h.surface,
		Channels: h.channels,
		Audit:    h.audit,
		Clock:    h.clock,
		Logger:   log.New(io.Discard, "", 0),
	}
	cfg := Config{VoterRoleID: "role-voter"}
	h.cfg, h.deps = cfg, deps
	h.builder = NewBuilder(cfg, deps)
	h.engine, h.scheduler = h.newEngine(deps)
	return h
}

// newEngine builds an engine and scheduler over deps whose teardowns run
// immediately.
func (h *harness) newEngine(deps Deps) (*Engine, *Scheduler) {
	e := NewEngine(h.cfg, deps)
	e.after = func(_ time.Duration, f func()) func() bool {
		h.teardowns = append(h.teardowns, "scheduled")
		f()
		return func() bool { return false }
	}
	return e, NewScheduler(e, h.cfg, deps)
}

// ctxTickets fails writes on a cancelled context the way a database driver
// does.
type ctxTickets struct {
	*memTickets
}

func (c ctxTickets) FinalizeTicket(ctx context.Context, id uint64, result string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.memTickets.FinalizeTicket(ctx, id, result, at)
}

// cancelAfterInsert cancels a context once the first row is inserted.
type cancelAfterInsert struct {
	*memLists
	cancel context.CancelFunc
}

func (c cancelAfterInsert) InsertPerson(ctx context.Context, list listing.List, p *listing.Person) error {
	err := c.memLists.InsertPerson(ctx, list, p)
	c.cancel()
	return err
}
