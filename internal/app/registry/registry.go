// Package registry persists the channel and message mappings for status delivery.
package registry

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/LeafDevs/qbot/internal/infra/store"
)

// ChannelEntry maps a user to the channel their status is posted in.
// Entries keep configuration order; the effective shared channel is the
// oldest surviving entry.
type ChannelEntry struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// Registry manages the persisted channel config and message refs.
type Registry struct {
	mu       sync.Mutex
	store    *store.Store
	channels []ChannelEntry
	messages map[string]string // userID -> outbound message ID
}

// New creates the registry and loads persisted mappings.
func New(st *store.Store) (*Registry, error) {
	r := &Registry{
		store:    st,
		messages: make(map[string]string),
	}
	if err := st.Load(store.DocChannels, &r.channels); err != nil {
		return nil, errors.Wrap(err, "failed to load channel config")
	}
	if err := st.Load(store.DocMessages, &r.messages); err != nil {
		return nil, errors.Wrap(err, "failed to load message refs")
	}
	return r, nil
}

// SetUserChannel configures the user's status channel, overwriting any
// previous channel. Re-configuration keeps the entry's original position.
func (r *Registry) SetUserChannel(userID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.channels {
		if r.channels[i].UserID == userID {
			r.channels[i].ChannelID = channelID
			return r.saveChannelsLocked()
		}
	}
	r.channels = append(r.channels, ChannelEntry{UserID: userID, ChannelID: channelID})
	return r.saveChannelsLocked()
}

// UserChannel returns the user's configured channel.
func (r *Registry) UserChannel(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.channels {
		if e.UserID == userID {
			return e.ChannelID, true
		}
	}
	return "", false
}

// RemoveUserChannel removes the user's channel config and clears their
// message ref; a new message is created after the next configuration.
func (r *Registry) RemoveUserChannel(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.removeChannelLocked(userID); err != nil {
		return err
	}
	return r.clearMessageLocked(userID)
}

// AllChannels returns all channel entries in configuration order.
func (r *Registry) AllChannels() []ChannelEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]ChannelEntry, len(r.channels))
	copy(result, r.channels)
	return result
}

// SharedChannelID returns the effective shared destination channel: the
// oldest configured entry.
func (r *Registry) SharedChannelID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.channels) == 0 {
		return "", false
	}
	return r.channels[0].ChannelID, true
}

// SetUserMessage records the user's live outbound message.
func (r *Registry) SetUserMessage(userID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[userID] = messageID
	return r.saveMessagesLocked()
}

// UserMessage returns the user's live outbound message ID.
func (r *Registry) UserMessage(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.messages[userID]
	return id, ok
}

// ClearUserMessage forgets the user's outbound message.
func (r *Registry) ClearUserMessage(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clearMessageLocked(userID)
}

// MessageRefs returns a copy of all user -> message mappings.
func (r *Registry) MessageRefs() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string]string, len(r.messages))
	for k, v := range r.messages {
		result[k] = v
	}
	return result
}

// RemoveUser is the unlink cascade: the user's own channel entry and
// message ref go away, but channels configured by other users survive so
// the shared channel keeps working for them.
func (r *Registry) RemoveUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.removeChannelLocked(userID); err != nil {
		return err
	}
	return r.clearMessageLocked(userID)
}

func (r *Registry) removeChannelLocked(userID string) error {
	for i := range r.channels {
		if r.channels[i].UserID == userID {
			r.channels = append(r.channels[:i], r.channels[i+1:]...)
			return r.saveChannelsLocked()
		}
	}
	return nil
}

func (r *Registry) clearMessageLocked(userID string) error {
	if _, ok := r.messages[userID]; !ok {
		return nil
	}
	delete(r.messages, userID)
	return r.saveMessagesLocked()
}

func (r *Registry) saveChannelsLocked() error {
	return errors.Wrap(r.store.Save(store.DocChannels, r.channels), "failed to persist channel config")
}

func (r *Registry) saveMessagesLocked() error {
	return errors.Wrap(r.store.Save(store.DocMessages, r.messages), "failed to persist message refs")
}
