package models

// RegistrationRequest is the signed intent of an account to be bound to
// the referrer owning InviterLink.
type RegistrationRequest struct {
	Account     string `json:"account"`
	Readonly    string `json:"readonly"`
	Signature   string `json:"sig"`
	InviterLink string `json:"inviterLink"`
}

// DrawingRequest asks to withdraw Amount of accrued commission in Channel.
// Amount stays a decimal string because it is part of the signed message.
type DrawingRequest struct {
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Channel   string `json:"type"`
	Signature string `json:"sig"`
}

// ApprovedDrawing is a drawing that passed signature and balance checks.
type ApprovedDrawing struct {
	Account string
	Amount  Amount
	Channel Channel
}

// Result is the response envelope of every public operation.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Msg        string `json:"msg"`
	Data       any    `json:"data"`
}

func Success(data any) *Result {
	return &Result{StatusCode: 200, Data: data}
}

func Fail(err error) *Result {
	le := AsLedgerError(err)
	return &Result{StatusCode: 500, Msg: le.Error(), Data: map[string]string{"kind": string(le.Kind)}}
}
