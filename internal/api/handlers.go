package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/lib/validate"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       int64         `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Budget   *models.Money `json:"budget,omitempty"`
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    UserResponse `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ItemResponse struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Price       models.Money `json:"price"`
	Barcode     string       `json:"barcode"`
	Description string       `json:"description"`
}

type OwnedResponse struct {
	Budget models.Money   `json:"budget"`
	Items  []ItemResponse `json:"items"`
}

type TradeRequest struct {
	ItemID int64 `json:"itemId"`
}

type TradeResponse struct {
	Message string       `json:"message"`
	Budget  models.Money `json:"budget"`
	Item    ItemResponse `json:"item"`
}

type FlashMessage struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type MarketFormResponse struct {
	Messages []FlashMessage `json:"messages"`
}

func flash(category, format string, args ...any) FlashMessage {
	return FlashMessage{Category: category, Message: fmt.Sprintf(format, args...)}
}

func toItemResponse(item models.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Barcode:     item.Barcode,
		Description: item.Description,
	}
}

func toItemResponses(items []models.Item) []ItemResponse {
	res := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		res = append(res, toItemResponse(item))
	}
	return res
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &validate.Errors{Fields: []validate.FieldError{{
			Field:   "body",
			Rule:    "json",
			Message: "No JSON provided or invalid JSON",
		}}}
	}
	return nil
}

func (s *APIServer) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, MessageResponse{Message: "Server is running"})
	}
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		user, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, RegisterResponse{
			Message: "User created",
			User:    UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		})
	}
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		identifier := req.Username
		if identifier == "" {
			identifier = req.Email
		}
		v := validate.New()
		v.Required("username/email", identifier)
		v.Required("password", req.Password)
		if err := v.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}

		user, err := s.auth.Authenticate(r.Context(), identifier, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		session, token, err := s.auth.Login(r.Context(), user)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  session.ExpiresAt,
			HttpOnly: true,
			Secure:   s.config.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		s.logger.Info("User logged in", slog.Int64("user_id", user.ID))

		budget := user.Budget
		s.writeJSON(w, http.StatusOK, LoginResponse{
			Message: "Login successful",
			Token:   token,
			User:    UserResponse{ID: user.ID, Username: user.Username, Email: user.Email, Budget: &budget},
		})
	}
}

func (s *APIServer) logoutHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
			s.writeError(w, r, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.config.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})

		s.writeJSON(w, http.StatusOK, MessageResponse{Message: "You have been logged out!"})
	}
}

func (s *APIServer) marketHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.exchange.Available(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, toItemResponses(items))
	}
}

func (s *APIServer) ownedHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		market, err := s.exchange.Market(r.Context(), sessionFrom(r.Context()).UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, OwnedResponse{Budget: market.Budget, Items: toItemResponses(market.Owned)})
	}
}

func (s *APIServer) decodeTrade(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req TradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	if req.ItemID <= 0 {
		s.writeError(w, r, &validate.Errors{Fields: []validate.FieldError{{
			Field:   "itemId",
			Rule:    validate.RuleRequired,
			Message: "itemId is required",
		}}})
		return 0, false
	}
	return req.ItemID, true
}

func (s *APIServer) purchaseHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := s.decodeTrade(w, r)
		if !ok {
			return
		}

		receipt, err := s.exchange.Purchase(r.Context(), sessionFrom(r.Context()).UserID, itemID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, TradeResponse{
			Message: fmt.Sprintf("Congratulations! You purchased %s for %s$", receipt.Item.Name, receipt.Item.Price),
			Budget:  receipt.Budget,
			Item:    toItemResponse(receipt.Item),
		})
	}
}

func (s *APIServer) sellHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, ok := s.decodeTrade(w, r)
		if !ok {
			return
		}

		receipt, err := s.exchange.Sell(r.Context(), sessionFrom(r.Context()).UserID, itemID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, TradeResponse{
			Message: fmt.Sprintf("Congratulations! You sold %s back to market!", receipt.Item.Name),
			Budget:  receipt.Budget,
			Item:    toItemResponse(receipt.Item),
		})
	}
}

// marketFormHandler serves the form-encoded market page submission, where
// purchased_item and sold_item name the items to trade. Unknown item names
// are ignored and rule violations are reported as danger messages. A sale
// failing after a committed purchase is reported as a danger message too.
func (s *APIServer) marketFormHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, &validate.Errors{Fields: []validate.FieldError{{
				Field:   "body",
				Rule:    "form",
				Message: "invalid form data",
			}}})
			return
		}

		userID := sessionFrom(r.Context()).UserID
		messages := make([]FlashMessage, 0, 2)

		if name := strings.TrimSpace(r.PostForm.Get("purchased_item")); name != "" {
			receipt, err := s.exchange.PurchaseByName(r.Context(), userID, name)
			switch {
			case err == nil:
				messages = append(messages, flash("success",
					"Congratulations! You purchased %s for %s$", receipt.Item.Name, receipt.Item.Price))
			case errors.Is(err, models.ErrItemNotFound):
			case errors.Is(err, models.ErrInsufficientFunds):
				messages = append(messages, flash("danger",
					"Unfortunately, you do not have enough money to purchase %s!", name))
			case errors.Is(err, models.ErrItemAlreadyOwned):
				messages = append(messages, flash("danger",
					"Unfortunately, %s is no longer available!", name))
			default:
				s.writeError(w, r, err)
				return
			}
		}

		if name := strings.TrimSpace(r.PostForm.Get("sold_item")); name != "" {
			receipt, err := s.exchange.SellByName(r.Context(), userID, name)
			switch {
			case err == nil:
				messages = append(messages, flash("success",
					"Congratulations! You sold %s back to market!", receipt.Item.Name))
			case errors.Is(err, models.ErrItemNotFound):
			case errors.Is(err, models.ErrNotOwner):
				messages = append(messages, flash("danger",
					"Something went wrong with selling %s", name))
			default:
				if len(messages) == 0 {
					s.writeError(w, r, err)
					return
				}
				// The purchase above already committed; report both halves.
				s.logger.Error("Form sale failed", slog.String("item", name), slog.Any("error", err))
				messages = append(messages, flash("danger",
					"Something went wrong with selling %s", name))
			}
		}

		s.writeJSON(w, http.StatusOK, MarketFormResponse{Messages: messages})
	}
}
