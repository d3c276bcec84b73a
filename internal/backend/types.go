package backend

// PendingMessage is one outbound text message awaiting dispatch, as returned
// by the remote store's pending-sms listing. The server filters to unsent
// records, so Flag is true on everything it returns.
type PendingMessage struct {
	ID           int64  `json:"id"`
	FullName     string `json:"fullname"`
	Phone        string `json:"phone"`
	Body         string `json:"message"`
	JobcardRefID int64  `json:"jobcardrefid"`
	Flag         bool   `json:"flag"`
}

// MarkSentResponse is the remote store's reply to a mark-sent call.
type MarkSentResponse struct {
	Status string `json:"status"`
}
