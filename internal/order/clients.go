package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SellerDTO is the reporting view of a seller supplied by the catalog
// service. Read-only; this core never mutates seller data.
type SellerDTO struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Ext talks to the catalog service for display data used in summaries.
// It is never called inside a transaction.
type Ext struct {
	HTTP    *http.Client
	BaseURL string
}

func NewExt(baseURL string) *Ext {
	return &Ext{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		BaseURL: baseURL,
	}
}

func (e *Ext) FetchSeller(ctx context.Context, id int64) (*SellerDTO, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/sellers/%d", e.BaseURL, id), nil)
	res, err := e.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("seller not found")
	}
	var s SellerDTO
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
