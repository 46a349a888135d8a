package moderation

import (
	"sync"
	"time"
)

// fakeGateway scripts the network collaborator for locator and pipeline tests.
type fakeGateway struct {
	mu           sync.Mutex
	channels     []string
	unreadable   map[string]bool
	history      map[string][]Message
	messages     map[string]Message
	fetchErr     map[string]error
	bulkErrQueue []error
	bulkCalls    [][]string
	deleteErr    map[string]error
	deleted      []string
	historyCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		unreadable: make(map[string]bool),
		history:    make(map[string][]Message),
		messages:   make(map[string]Message),
		fetchErr:   make(map[string]error),
		deleteErr:  make(map[string]error),
	}
}

func (g *fakeGateway) addMessage(channelID, messageID, authorID string, ts time.Time) {
	msg := Message{ID: messageID, ChannelID: channelID, AuthorID: authorID, Timestamp: ts}
	g.history[channelID] = append(g.history[channelID], msg)
	g.messages[channelID+":"+messageID] = msg
}

func (g *fakeGateway) TextChannels(string) ([]string, error) {
	return g.channels, nil
}

func (g *fakeGateway) CanReadHistory(channelID string) bool {
	return !g.unreadable[channelID]
}

func (g *fakeGateway) ChannelMessages(channelID string, limit int) ([]Message, error) {
	g.mu.Lock()
	g.historyCalls++
	g.mu.Unlock()
	msgs := g.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (g *fakeGateway) Message(channelID, messageID string) (Message, error) {
	key := channelID + ":" + messageID
	if err := g.fetchErr[key]; err != nil {
		return Message{}, err
	}
	msg, ok := g.messages[key]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (g *fakeGateway) BulkDelete(_ string, messageIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bulkCalls = append(g.bulkCalls, append([]string(nil), messageIDs...))
	if len(g.bulkErrQueue) > 0 {
		err := g.bulkErrQueue[0]
		g.bulkErrQueue = g.bulkErrQueue[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *fakeGateway) Delete(channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.deleteErr[channelID+":"+messageID]; err != nil {
		return err
	}
	g.deleted = append(g.deleted, messageID)
	return nil
}
