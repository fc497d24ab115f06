package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/market/internal/config"
	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/service/exchange"
	"github.com/gorilla/mux"
)

const (
	sessionCookie = "session"
	maxBodyBytes  = 1 << 20
)

type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, identifier, password string) (*models.User, error)
	Login(ctx context.Context, user *models.User) (models.Session, string, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (models.Session, error)
	User(ctx context.Context, session models.Session) (*models.User, error)
}

type Exchange interface {
	Purchase(ctx context.Context, buyerID, itemID int64) (exchange.Receipt, error)
	Sell(ctx context.Context, sellerID, itemID int64) (exchange.Receipt, error)
	PurchaseByName(ctx context.Context, buyerID int64, name string) (exchange.Receipt, error)
	SellByName(ctx context.Context, sellerID int64, name string) (exchange.Receipt, error)
	Available(ctx context.Context) ([]models.Item, error)
	Market(ctx context.Context, userID int64) (exchange.Market, error)
}

type APIServer struct {
	config   *config.Config
	logger   *slog.Logger
	server   *http.Server
	auth     Authenticator
	exchange Exchange
}

func New(config *config.Config, logger *slog.Logger, auth Authenticator, exchange Exchange) *APIServer {
	return &APIServer{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              config.ApiHost + ":" + strconv.Itoa(config.ApiPort),
			ReadHeaderTimeout: 5 * time.Second,
		},
		auth:     auth,
		exchange: exchange,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("port", strconv.Itoa(s.config.ApiPort)))

	s.server.Handler = s.router()

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.healthHandler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.registerHandler()).Methods("POST")
	api.HandleFunc("/login", s.loginHandler()).Methods("POST")
	api.HandleFunc("/logout", s.authenticate(s.logoutHandler())).Methods("POST")
	api.HandleFunc("/market", s.marketHandler()).Methods("GET")
	api.HandleFunc("/market/owned", s.authenticate(s.ownedHandler())).Methods("GET")
	api.HandleFunc("/market/purchase", s.authenticate(s.purchaseHandler())).Methods("POST")
	api.HandleFunc("/market/sell", s.authenticate(s.sellHandler())).Methods("POST")

	router.HandleFunc("/market", s.authenticate(s.marketFormHandler())).Methods("POST")

	return router
}

type ctxKey int

const (
	sessionKey ctxKey = iota
	tokenKey
)

func sessionFrom(ctx context.Context) models.Session {
	session, _ := ctx.Value(sessionKey).(models.Session)
	return session
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// requestToken reads the session token from the cookie, falling back to an
// Authorization: Bearer header.
func requestToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	tokenHeader := r.Header.Get("Authorization")
	if tokenHeader == "" {
		return "", false
	}
	parts := strings.Split(tokenHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := requestToken(r)
		if !ok {
			s.writeError(w, r, models.ErrUnauthenticated)
			return
		}

		session, err := s.auth.Resolve(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *APIServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
