package models

type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Barcode     string `json:"barcode"`
	Description string `json:"description"`
	Owner       *int64 `json:"owner,omitempty"`
}

func (i *Item) Available() bool {
	return i.Owner == nil
}
