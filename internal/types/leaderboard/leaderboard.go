package leaderboard

type LeaderboardEntry struct {
	UID         string  `json:"uid" db:"uid"`
	DisplayName string  `json:"displayName" db:"display_name"`
	PhotoURL    string  `json:"photoURL" db:"photo_url"`
	TotalPoints int     `json:"totalPoints" db:"total_points"`
	TotalCarbon float64 `json:"totalCarbon" db:"total_carbon"`
	TotalLogs   int     `json:"totalLogs" db:"total_logs"`
	Streak      int     `json:"streak" db:"streak"`
	Rank        int     `json:"rank" db:"rank"`
}

type Leaderboard struct {
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}
