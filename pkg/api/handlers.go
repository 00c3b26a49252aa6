package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/contextkeys"
	"github.com/authward/authward/pkg/httputil"
	"github.com/authward/authward/pkg/middleware"
	"github.com/authward/authward/pkg/observability"
)

// Handlers holds the HTTP surface over the three authentication modes plus
// user administration.
type Handlers struct {
	store    auth.Store
	users    auth.WritableStore
	basic    *auth.BasicAuthenticator
	sessions *auth.SessionManager
	tokens   *auth.TokenService
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewHandlers wires the handlers. users may be nil when the backend has no
// admin surface; metrics may be nil in tests.
func NewHandlers(store auth.Store, users auth.WritableStore, basic *auth.BasicAuthenticator,
	sessions *auth.SessionManager, tokens *auth.TokenService,
	logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		store:    store,
		users:    users,
		basic:    basic,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes registers all endpoints on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.root).Methods("GET")

	// Basic-credential mode
	router.HandleFunc("/user/login/", h.basicLogin).Methods("GET")
	router.HandleFunc("/user/logout/", h.basicLogout).Methods("POST")

	// Session-cookie mode
	router.HandleFunc("/oauth/login", h.sessionLogin).Methods("POST")
	router.HandleFunc("/oauth/logout/", h.sessionLogout).Methods("POST")
	router.Handle("/oauth/get_user/", middleware.SessionAuth(h.sessions)(http.HandlerFunc(h.sessionGetUser))).Methods("GET")

	// Token mode
	router.HandleFunc("/oauth/jwt/login/", h.jwtLogin).Methods("POST")
	router.Handle("/oauth/jwt/get_user/", middleware.TokenAuth(h.tokens)(http.HandlerFunc(h.jwtGetUser))).Methods("GET")
	router.HandleFunc("/oauth/token/", h.tokenPairLogin).Methods("POST")
	router.HandleFunc("/oauth/oidc/token/", h.tokenPairLogin).Methods("POST")
	router.HandleFunc("/userinfo/", h.userInfo).Methods("GET")
	router.Handle("/user/access_scope/", middleware.AccessTokenAuth(h.tokens, h.store)(http.HandlerFunc(h.accessScope))).Methods("GET")

	// User administration
	router.HandleFunc("/users/", h.listUsers).Methods("GET")
	router.HandleFunc("/users/", h.createUser).Methods("POST")
	router.HandleFunc("/users/{username}", h.getUser).Methods("GET")
}

func (h *Handlers) observeLogin(mode string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = auth.Code(err)
	}
	h.metrics.ObserveLogin(mode, outcome)
}

func (h *Handlers) observeValidation(mode string, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = auth.Code(err)
	}
	h.metrics.ObserveValidation(mode, outcome)
}

// root is the liveness banner for the main port.
func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("You can use this API."))
}

// basicLogin authenticates the HTTP Basic header and flips the login flag.
func (h *Handlers) basicLogin(w http.ResponseWriter, r *http.Request) {
	username, secret, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="authward"`)
		httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
		return
	}

	id, err := h.basic.Login(r.Context(), username, secret)
	h.observeLogin("basic", err)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("login successful", id))
}

// basicLogout clears the login flag for the named user.
func (h *Handlers) basicLogout(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		_ = r.ParseForm()
		username = r.PostFormValue("username")
	}
	if username == "" {
		httputil.WriteBadRequest(w, "username is required")
		return
	}

	id, err := h.basic.Logout(r.Context(), username)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("logout successful", id))
}

// sessionLogin verifies credentials and sets the session cookie.
func (h *Handlers) sessionLogin(w http.ResponseWriter, r *http.Request) {
	username, secret, err := httputil.Credentials(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	presented := httputil.CookieValue(r, middleware.SessionCookieName)
	s, err := h.sessions.Login(r.Context(), username, secret, presented)
	h.observeLogin("session", err)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	if h.metrics != nil {
		h.metrics.ActiveSessions.Inc()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    s.Handle,
		Path:     "/",
		Expires:  s.Expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("login successful", map[string]interface{}{
		"username": s.Username,
		"expiry":   s.Expiry,
	}))
}

// sessionLogout ends the presented session and clears the cookie.
func (h *Handlers) sessionLogout(w http.ResponseWriter, r *http.Request) {
	handle := httputil.CookieValue(r, middleware.SessionCookieName)
	if handle == "" {
		httputil.WriteAuthError(w, auth.ErrNotLoggedIn, 0)
		return
	}

	if err := h.sessions.Logout(r.Context(), handle); err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	if h.metrics != nil {
		h.metrics.ActiveSessions.Dec()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("logout successful"))
}

// sessionGetUser returns the identity the session middleware resolved.
func (h *Handlers) sessionGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := contextkeys.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
		return
	}
	h.observeValidation("session", nil)
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("user resolved", id))
}

// jwtLogin issues a bearer identity token and also sets it as a cookie for
// browser clients.
func (h *Handlers) jwtLogin(w http.ResponseWriter, r *http.Request) {
	username, secret, err := httputil.Credentials(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	issued, err := h.tokens.IssueBearer(r.Context(), username, secret)
	h.observeLogin("token", err)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues("bearer").Inc()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.JWTCookieName,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		Expire:      issued.ExpiresAt.Unix(),
	})
}

// jwtGetUser returns the identity resolved by the token middleware.
func (h *Handlers) jwtGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := contextkeys.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
		return
	}
	h.observeValidation("token", nil)
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("user resolved", id))
}

// tokenPairLogin is the two-token password flow: a short-lived identity token
// plus a scoped access token. The identity may be a username or email.
func (h *Handlers) tokenPairLogin(w http.ResponseWriter, r *http.Request) {
	username, secret, err := httputil.Credentials(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.tokens.IssuePair(r.Context(), username, secret)
	h.observeLogin("token", err)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues("identity").Inc()
		h.metrics.TokensIssued.WithLabelValues("access").Inc()
	}
	httputil.WriteJSON(w, http.StatusOK, TokenPairResponse{
		AuthToken:   pair.AuthToken.Token,
		AccessToken: pair.AccessToken.Token,
		TokenType:   "bearer",
		Expire:      pair.AccessToken.ExpiresAt.Unix(),
	})
}

// userInfo validates the id_token query parameter and echoes its claims. A
// malformed or mis-signed token is the caller's input error and reports 400;
// an expired one reports 401 like everywhere else.
func (h *Handlers) userInfo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id_token")
	if raw == "" {
		httputil.WriteBadRequest(w, "id_token is required")
		return
	}

	_, claims, err := h.tokens.ValidateIdentity(r.Context(), raw)
	h.observeValidation("token", err)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			httputil.WriteAuthError(w, err, http.StatusBadRequest)
			return
		}
		httputil.WriteAuthError(w, err, 0)
		return
	}

	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}
	httputil.WriteJSON(w, http.StatusOK, UserInfoResponse{
		Sub:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Iss:   claims.Issuer,
		Exp:   exp,
	})
}

// accessScope reports the scopes the access-token middleware validated.
func (h *Handlers) accessScope(w http.ResponseWriter, r *http.Request) {
	id, ok := contextkeys.IdentityFrom(r.Context())
	if !ok {
		httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
		return
	}
	scopes, _ := contextkeys.ScopesFrom(r.Context())
	h.observeValidation("token", nil)
	httputil.WriteJSON(w, http.StatusOK, AccessScopeResponse{
		Username: id.Username,
		Scopes:   scopes,
	})
}

// listUsers returns records matching the query filter.
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "not_supported", "user administration is not available on this backend")
		return
	}

	q := r.URL.Query()
	records, err := h.users.List(r.Context(), auth.Filter{
		FirstName:  q.Get("first_name"),
		LastName:   q.Get("last_name"),
		Email:      q.Get("email"),
		Department: q.Get("department"),
	})
	if err != nil {
		h.logger.WithError(err).Error("user list failed")
		httputil.WriteInternalError(w)
		return
	}

	data := make([]interface{}, len(records))
	for i := range records {
		data[i] = records[i].Identity()
	}
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("users", data...))
}

// createUser registers a new account.
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "not_supported", "user administration is not available on this backend")
		return
	}

	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "username and password are required")
		return
	}

	rec, err := h.users.Create(r.Context(), auth.UserRecord{
		Username:   req.Username,
		Secret:     req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Department: req.Department,
	})
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, NewBasicResponse("user created", rec.Identity()))
}

// getUser resolves one username or email.
func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["username"]
	rec, err := h.store.Find(r.Context(), identity)
	if err != nil {
		httputil.WriteAuthError(w, err, 0)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewBasicResponse("user", rec.Identity()))
}
