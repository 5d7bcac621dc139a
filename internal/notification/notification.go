package notification

import (
	"context"
	"fmt"
	"strconv"

	"ecoQuestAPI/internal/types/challenge"
)

// Push is one message addressed to a single user.
type Push struct {
	UID   string
	Title string
	Body  string
	Data  map[string]string
}

type Sender interface {
	Send(ctx context.Context, p Push) error
}

// Topic is the FCM topic a user's devices subscribe to.
func Topic(uid string) string {
	return "user_" + uid
}

func ChallengeCompleted(uid string, c *challenge.UserChallenge) Push {
	return Push{
		UID:   uid,
		Title: "Challenge complete!",
		Body:  fmt.Sprintf("%s %s: +%d points", c.Icon, c.Title, c.Reward),
		Data: map[string]string{
			"type":         "challenge_completed",
			"challenge_id": c.ID,
			"reward":       strconv.Itoa(c.Reward),
		},
	}
}
