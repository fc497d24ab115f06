package models

// DefaultBudget is the budget every user starts with.
const DefaultBudget Money = 1000_00

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Budget       Money  `json:"budget"`
}

// CanPurchase reports whether the user's budget covers the item price.
func (u *User) CanPurchase(item *Item) bool {
	return u.Budget >= item.Price
}

// CanSell reports whether the user currently owns the item.
func (u *User) CanSell(item *Item) bool {
	return item.Owner != nil && *item.Owner == u.ID
}
