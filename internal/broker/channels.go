package broker

import (
	"sort"
	"sync"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/localcmd"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// channelRegistry is the broker's only mutable global: channel name to
// member set, plus the reverse joined-set on each connection. One RWMutex
// guards both directions so membership changes and routing observe the same
// view. A channel exists iff its member set is non-empty; removal of the
// last member deletes the entry in the same critical section.
type channelRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[*Connection]struct{}
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{channels: make(map[string]map[*Connection]struct{})}
}

// join adds c to name. Reports whether the channel was created and whether
// c was already a member (re-join is a no-op aside from the ack).
func (r *channelRegistry) join(name string, c *Connection) (created, already bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[name]
	if !ok {
		members = make(map[*Connection]struct{})
		r.channels[name] = members
		created = true
	}
	if _, already = members[c]; already {
		return created, true
	}
	members[c] = struct{}{}
	c.joined[name] = struct{}{}
	return created, false
}

// removeConnection drops c from every channel and returns the names of
// channels that emptied out (deleted atomically with the removal).
func (r *channelRegistry) removeConnection(c *Connection) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emptied []string
	for name := range c.joined {
		members, ok := r.channels[name]
		if !ok {
			continue
		}
		delete(members, c)
		if len(members) == 0 {
			delete(r.channels, name)
			emptied = append(emptied, name)
		}
	}
	c.joined = make(map[string]struct{})
	return emptied
}

// isMember reports whether c has joined name.
func (r *channelRegistry) isMember(name string, c *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := c.joined[name]
	return ok
}

// members returns a copied member slice so fan-out never holds the lock.
func (r *channelRegistry) members(name string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.channels[name]
	if !ok {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// joinedChannels returns the sorted channels c belongs to.
func (r *channelRegistry) joinedChannels(c *Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(c.joined))
	for name := range c.joined {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// count reports the number of live channels.
func (r *channelRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// activeChannels snapshots every channel with member counts split by the
// self-declared client role, sorted by name.
func (r *channelRegistry) activeChannels() []localcmd.ChannelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]localcmd.ChannelInfo, 0, len(r.channels))
	for name, members := range r.channels {
		info := localcmd.ChannelInfo{Name: name, Members: len(members)}
		for c := range members {
			switch c.ClientType() {
			case protocol.ClientController:
				info.Controllers++
			case protocol.ClientExecutor:
				info.Executors++
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
