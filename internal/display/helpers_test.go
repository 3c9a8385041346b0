package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/storefront/internal/database/types"
)

var errTransient = errors.New("discord is having a bad day")

// fakeClock advances only when slept on.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

type edit struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	Artifact  *Artifact
}

// fakeMessenger records edits and simulates missing targets.
type fakeMessenger struct {
	mu           sync.Mutex
	goneChannels map[snowflake.ID]bool
	goneMessages map[snowflake.ID]bool
	editErr      error
	panicOnEdit  bool
	calls        int
	edits        []edit
	sent         []edit
	nextID       snowflake.ID

	// When set, EditMessage signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		goneChannels: make(map[snowflake.ID]bool),
		goneMessages: make(map[snowflake.ID]bool),
		nextID:       9000,
	}
}

func (m *fakeMessenger) ResolveChannel(_ context.Context, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.goneChannels[channelID] {
		return fmt.Errorf("channel %d: %w", channelID, ErrTargetGone)
	}
	return nil
}

func (m *fakeMessenger) FetchMessage(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.goneMessages[messageID] {
		return fmt.Errorf("message %d: %w", messageID, ErrTargetGone)
	}
	return nil
}

func (m *fakeMessenger) EditMessage(_ context.Context, channelID, messageID snowflake.ID, artifact *Artifact) error {
	m.mu.Lock()
	entered, release := m.entered, m.release
	m.entered, m.release = nil, nil
	m.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.panicOnEdit {
		m.panicOnEdit = false
		panic("boom")
	}
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, edit{ChannelID: channelID, MessageID: messageID, Artifact: artifact})
	return nil
}

func (m *fakeMessenger) SendMessage(_ context.Context, channelID snowflake.ID, artifact *Artifact) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.nextID++
	m.sent = append(m.sent, edit{ChannelID: channelID, MessageID: m.nextID, Artifact: artifact})
	return m.nextID, nil
}

// blockNextEdit makes the next EditMessage wait until the returned release
// function is called. The entered channel is closed once it is waiting.
func (m *fakeMessenger) blockNextEdit() (entered <-chan struct{}, release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entered = make(chan struct{})
	m.release = make(chan struct{})
	rel := m.release
	return m.entered, func() { close(rel) }
}

func (m *fakeMessenger) Edits() []edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]edit(nil), m.edits...)
}

func (m *fakeMessenger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu          sync.Mutex
	products    map[snowflake.ID][]*types.Product
	stock       map[snowflake.ID]map[string]int
	leaderboard map[snowflake.ID][]*types.LeaderboardEntry
	settings    map[snowflake.ID]map[string]string
	settingErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:    make(map[snowflake.ID][]*types.Product),
		stock:       make(map[snowflake.ID]map[string]int),
		leaderboard: make(map[snowflake.ID][]*types.LeaderboardEntry),
		settings:    make(map[snowflake.ID]map[string]string),
	}
}

func (s *fakeStore) addProduct(guildID snowflake.ID, code, name string, price int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[guildID] = append(s.products[guildID], &types.Product{GuildID: guildID, Code: code, Name: name, Price: price})
	if s.stock[guildID] == nil {
		s.stock[guildID] = make(map[string]int)
	}
	s.stock[guildID][code] = stock
}

func (s *fakeStore) GetProducts(_ context.Context, guildID snowflake.ID) ([]*types.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[guildID], nil
}

func (s *fakeStore) GetProductStock(_ context.Context, guildID snowflake.ID, product string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[guildID][product], nil
}

func (s *fakeStore) GetLeaderboard(_ context.Context, guildID snowflake.ID, limit int) ([]*types.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.leaderboard[guildID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *fakeStore) GetSetting(_ context.Context, guildID snowflake.ID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingErr != nil {
		return "", false, s.settingErr
	}
	value, ok := s.settings[guildID][key]
	return value, ok, nil
}

func (s *fakeStore) SetSetting(_ context.Context, guildID snowflake.ID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingErr != nil {
		return s.settingErr
	}
	if s.settings[guildID] == nil {
		s.settings[guildID] = make(map[string]string)
	}
	s.settings[guildID][key] = value
	return nil
}

func (s *fakeStore) DeleteSetting(_ context.Context, guildID snowflake.ID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingErr != nil {
		return s.settingErr
	}
	delete(s.settings[guildID], key)
	return nil
}

func (s *fakeStore) GuildsWithSetting(_ context.Context, key string) ([]snowflake.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingErr != nil {
		return nil, s.settingErr
	}
	var guilds []snowflake.ID
	for guildID, settings := range s.settings {
		if _, ok := settings[key]; ok {
			guilds = append(guilds, guildID)
		}
	}
	return guilds, nil
}

func (s *fakeStore) setting(guildID snowflake.ID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.settings[guildID][key]
	return value, ok
}

func testOptions() Options {
	return Options{
		StockTitle:           "Stock",
		LeaderboardTitle:     "Top Buyers",
		Color:                0x123456,
		StockEmptyText:       "Nothing for sale",
		LeaderboardEmptyText: "No buyers yet",
		LeaderboardLimit:     10,
	}
}
