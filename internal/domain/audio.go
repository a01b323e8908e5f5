package domain

import "time"

// AudioArtifact is a synthesized reply held until the client fetches it.
type AudioArtifact struct {
	ID        string
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}
