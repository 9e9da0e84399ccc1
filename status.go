package toast

type ManagerStatus int32

const (
	ManagerStatusIdle ManagerStatus = iota
	ManagerStatusConnecting
	ManagerStatusReconnecting
	ManagerStatusReady
	ManagerStatusDestroyed
)

func (status ManagerStatus) String() string {
	return []string{
		"Idle",
		"Connecting",
		"Reconnecting",
		"Ready",
		"Destroyed",
	}[status]
}

type ShardStatus int32

const (
	ShardStatusIdle ShardStatus = iota
	ShardStatusConnecting
	ShardStatusReconnecting
	ShardStatusNearly
	ShardStatusIdentifying
	ShardStatusResuming
	ShardStatusWaitingForGuilds
	ShardStatusReady
	ShardStatusDisconnected
)

func (status ShardStatus) String() string {
	return []string{
		"Idle",
		"Connecting",
		"Reconnecting",
		"Nearly",
		"Identifying",
		"Resuming",
		"WaitingForGuilds",
		"Ready",
		"Disconnected",
	}[status]
}

// MarshalText lets statuses show up by name in the status api.
func (status ShardStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}

func (status ManagerStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}
