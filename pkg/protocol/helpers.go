package protocol

import "time"

// NewStateMessage creates a state message from a status snapshot.
func NewStateMessage(state StateData) (*Message, error) {
	return NewMessage(TypeState, state)
}

// NewDriveMessage creates a drive relay message.
func NewDriveMessage(cmd string) (*Message, error) {
	return NewMessage(TypeDrive, DriveCommand{Command: cmd})
}

// NewTrackMessage creates a tracking toggle message.
func NewTrackMessage(enabled bool) (*Message, error) {
	return NewMessage(TypeTrack, TrackCommand{Enabled: enabled})
}

// NewPingMessage creates a ping message.
func NewPingMessage() (*Message, error) {
	return NewMessage(TypePing, PingData{SentAt: time.Now().UnixMilli()})
}

// NewPongMessage creates a pong response echoing the ping timestamp.
func NewPongMessage(pingSentAt int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		PingSentAt: pingSentAt,
		RepliedAt:  time.Now().UnixMilli(),
	})
}
