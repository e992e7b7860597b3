package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"flatter-chat/internal/models"
	"flatter-chat/internal/repositories"
)

// MemoryStore is an in-memory stand-in for the document store. It
// implements every repository interface behind one mutex, with the same
// atomicity as the sqlx implementations: Create is all-or-nothing and
// TouchAndIncrement never loses an increment under concurrent callers.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	inbox         map[string]map[string]models.InboxEntry
	profiles      map[string]models.Profile
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		inbox:         make(map[string]map[string]models.InboxEntry),
		profiles:      make(map[string]models.Profile),
	}
}

// AddProfile seeds a profile.
func (m *MemoryStore) AddProfile(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// DropInboxEntry simulates a lost preview row.
func (m *MemoryStore) DropInboxEntry(userID, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entries, ok := m.inbox[userID]; ok {
		delete(entries, conversationID)
	}
}

// ConversationCount reports how many conversation records exist.
func (m *MemoryStore) ConversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// MessagesIn returns a copy of a conversation's messages.
func (m *MemoryStore) MessagesIn(conversationID string) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages[conversationID]...)
}

// Entry returns one inbox entry and whether it exists.
func (m *MemoryStore) Entry(userID, conversationID string) (models.InboxEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.inbox[userID][conversationID]
	return entry, ok
}

func (m *MemoryStore) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	return conv, nil
}

func (m *MemoryStore) Create(ctx context.Context, conv models.Conversation, previews []models.InboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = conv
	for _, entry := range previews {
		m.upsertLocked(entry)
	}
	return nil
}

func (m *MemoryStore) SetLastMessage(ctx context.Context, conversationID string, text string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	conv.LastMessage = text
	conv.LastMessageAt = at
	m.conversations[conversationID] = conv
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, conversationID string, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	conv.Status = status
	m.conversations[conversationID] = conv
	for _, entries := range m.inbox {
		if entry, ok := entries[conversationID]; ok {
			entry.Status = status
			entries[conversationID] = entry
		}
	}
	return nil
}

func (m *MemoryStore) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return false, nil
	}
	return conv.HasParticipant(userID), nil
}

func (m *MemoryStore) Append(ctx context.Context, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *MemoryStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append([]models.Message(nil), m.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (m *MemoryStore) MarkRead(ctx context.Context, conversationID string, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	msgs := m.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].Read {
			msgs[i].Read = true
			affected++
		}
	}
	return affected, nil
}

func (m *MemoryStore) ListForUser(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []models.InboxEntry
	for _, entry := range m.inbox[userID] {
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].LastMessageAt.After(entries[j].LastMessageAt) })
	return entries, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, entry models.InboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(entry)
	return nil
}

func (m *MemoryStore) Touch(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.inbox[userID][conversationID]
	if !ok {
		return 0, nil
	}
	entry.LastMessage = text
	entry.LastMessageAt = at
	m.inbox[userID][conversationID] = entry
	return 1, nil
}

func (m *MemoryStore) TouchAndIncrement(ctx context.Context, userID, conversationID, text string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.inbox[userID][conversationID]
	if !ok {
		return 0, nil
	}
	entry.LastMessage = text
	entry.LastMessageAt = at
	entry.UnreadCount++
	m.inbox[userID][conversationID] = entry
	return 1, nil
}

func (m *MemoryStore) ResetUnread(ctx context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.inbox[userID][conversationID]; ok {
		entry.UnreadCount = 0
		m.inbox[userID][conversationID] = entry
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entries, ok := m.inbox[userID]; ok {
		delete(entries, conversationID)
	}
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[userID]
	if !ok {
		return models.Profile{}, repositories.ErrProfileNotFound
	}
	return profile, nil
}

func (m *MemoryStore) upsertLocked(entry models.InboxEntry) {
	if _, ok := m.inbox[entry.UserID]; !ok {
		m.inbox[entry.UserID] = make(map[string]models.InboxEntry)
	}
	m.inbox[entry.UserID][entry.ConversationID] = entry
}

// Profiles adapts the store to the ProfileRepository interface, whose Get
// signature collides with ConversationRepository's.
func (m *MemoryStore) Profiles() repositories.ProfileRepository {
	return profileView{store: m}
}

type profileView struct {
	store *MemoryStore
}

func (v profileView) Get(ctx context.Context, userID string) (models.Profile, error) {
	return v.store.GetProfile(ctx, userID)
}

var _ repositories.ConversationRepository = (*MemoryStore)(nil)
var _ repositories.MessageRepository = (*MemoryStore)(nil)
var _ repositories.InboxRepository = (*MemoryStore)(nil)
var _ repositories.ProfileRepository = (profileView{})
