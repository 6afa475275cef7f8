package broadcast

// Server-to-client event types.
const (
	EventProcessingStarted = "processing_started"
	EventSubmissionUpdate  = "submission_update"
	EventContestUpdate     = "contest_update"
	EventWinnerDeclared    = "winner_declared"
)

// Client-to-server actions.
const (
	ActionJoinContest  = "join_contest"
	ActionLeaveContest = "leave_contest"
	ActionJoinUserRoom = "join_user_room"
)

// Event is the wire envelope pushed to subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ContestRoom names the room shared by all spectators of a contest.
func ContestRoom(contestID string) string {
	return "contest_" + contestID
}

// UserRoom names a single user's private room.
func UserRoom(userID string) string {
	return "user_" + userID
}
