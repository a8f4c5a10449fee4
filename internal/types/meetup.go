package types

import (
	"time"

	"github.com/google/uuid"
)

type Meetup struct {
	ID               uuid.UUID  `json:"id"`
	HostID           uuid.UUID  `json:"host_id"`
	HostName         string     `json:"host_name"`
	CitySlug         string     `json:"city_slug"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	StartsAt         time.Time  `json:"starts_at"`
	Capacity         int        `json:"capacity"`
	ParticipantCount int        `json:"participant_count"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Full reports whether no seats are left. A zero capacity means unlimited.
func (m Meetup) Full() bool {
	return m.Capacity > 0 && m.ParticipantCount >= m.Capacity
}

type Participant struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
}

type MeetupDetail struct {
	Meetup       Meetup
	Participants []Participant
}

// Joined reports whether userID is among the participants.
func (d MeetupDetail) Joined(userID uuid.UUID) bool {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

type CreateMeetupParams struct {
	CitySlug    string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	Capacity    int
}
