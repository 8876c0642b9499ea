package dto

type AuthResponse struct {
	Token  string `json:"token"`
	Member any    `json:"member"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type BalanceResponse struct {
	MemberID string `json:"member_id"`
	Balance  string `json:"balance"`
}
