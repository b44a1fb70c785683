package broker

// Events is the observer surface the broker publishes to. Collaborators
// (the desktop shell, tests) set the callbacks they care about; nil fields
// are skipped. Callbacks run on broker goroutines and must return quickly.
type Events struct {
	ClientConnected    func(id string)
	ClientDisconnected func(id, reason string)
	ChannelCreated     func(name string)
	ChannelDeleted     func(name string)
}

func (e *Events) clientConnected(id string) {
	if e != nil && e.ClientConnected != nil {
		e.ClientConnected(id)
	}
}

func (e *Events) clientDisconnected(id, reason string) {
	if e != nil && e.ClientDisconnected != nil {
		e.ClientDisconnected(id, reason)
	}
}

func (e *Events) channelCreated(name string) {
	if e != nil && e.ChannelCreated != nil {
		e.ChannelCreated(name)
	}
}

func (e *Events) channelDeleted(name string) {
	if e != nil && e.ChannelDeleted != nil {
		e.ChannelDeleted(name)
	}
}
