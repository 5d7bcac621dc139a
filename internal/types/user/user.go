package user

import "time"

const DefaultDisplayName = "Eco Explorer"

// Identity is what the identity provider knows about a signed-in user.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Profile is the per-user aggregate. Totals only move through log
// submission and challenge completion.
type Profile struct {
	UID         string    `json:"uid" db:"uid"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"displayName" db:"display_name"`
	PhotoURL    string    `json:"photoURL" db:"photo_url"`
	TotalCarbon float64   `json:"totalCarbon" db:"total_carbon"`
	TotalLogs   int       `json:"totalLogs" db:"total_logs"`
	TotalPoints int       `json:"totalPoints" db:"total_points"`
	Streak      int       `json:"streak" db:"streak"`
	LastLogDate *string   `json:"lastLogDate" db:"last_log_date"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`

	// derived on read, never stored
	Level         int     `json:"level"`
	LevelProgress float64 `json:"levelProgress"`
}

// NewProfile returns a zeroed aggregate for id.
func NewProfile(id Identity, now time.Time) *Profile {
	p := &Profile{
		UID:       id.UID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Merge(id, now)
	return p
}

// Merge copies identity fields onto p without touching the totals.
func (p *Profile) Merge(id Identity, now time.Time) {
	if id.Email != "" {
		p.Email = id.Email
	}
	switch {
	case id.DisplayName != "":
		p.DisplayName = id.DisplayName
	case p.DisplayName == "":
		p.DisplayName = DefaultDisplayName
	}
	if id.PhotoURL != "" {
		p.PhotoURL = id.PhotoURL
	}
	p.UpdatedAt = now
}

func (p *Profile) LastDayKey() string {
	if p.LastLogDate == nil {
		return ""
	}
	return *p.LastLogDate
}

func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastLogDate != nil {
		d := *p.LastLogDate
		c.LastLogDate = &d
	}
	return &c
}
