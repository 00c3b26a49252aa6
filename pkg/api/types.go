package api

// BasicResponse is the envelope most endpoints answer with. Data always
// marshals as a list; Count mirrors its length.
type BasicResponse struct {
	Result bool          `json:"result"`
	Msg    string        `json:"msg"`
	Count  int           `json:"count"`
	Data   []interface{} `json:"data"`
}

// NewBasicResponse builds a success envelope around the given items.
func NewBasicResponse(msg string, data ...interface{}) BasicResponse {
	if data == nil {
		data = []interface{}{}
	}
	return BasicResponse{Result: true, Msg: msg, Count: len(data), Data: data}
}

// TokenResponse is the single-token login answer.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Expire      int64  `json:"expire"`
}

// TokenPairResponse is the two-token login answer: an identity token for the
// client plus a scoped access token.
type TokenPairResponse struct {
	AuthToken   string `json:"auth_token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Expire      int64  `json:"expire"`
}

// UserInfoResponse is the claim view of a validated identity token.
type UserInfoResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Iss   string `json:"iss"`
	Exp   int64  `json:"exp"`
}

// AccessScopeResponse reports the scopes carried by a validated access token.
type AccessScopeResponse struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
}

// CreateUserRequest is the body of POST /users/.
type CreateUserRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}
