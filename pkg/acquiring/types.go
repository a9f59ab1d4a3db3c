package acquiring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// RegisterRequest registers one payment attempt. AmountMinor is already in
// minor units; the client never re-rounds it.
type RegisterRequest struct {
	AmountMinor int64
	OrderNumber string
	ReturnURL   string
	FailURL     string
	Description string
}

// RegisterResponse carries the gateway's id for the attempt and the hosted page URL.
type RegisterResponse struct {
	GatewayOrderID string
	FormURL        string
}

// StatusResponse is the authoritative state of a registered attempt.
type StatusResponse struct {
	OrderStatus           enums.GatewayStatus
	ActionCode            int
	ActionCodeDescription string
	AmountMinor           int64
	OrderNumber           string
}

type registerReply struct {
	OrderID      string   `json:"orderId"`
	FormURL      string   `json:"formUrl"`
	ErrorCode    flexCode `json:"errorCode"`
	ErrorMessage string   `json:"errorMessage"`
}

type statusReply struct {
	OrderStatus           *flexCode `json:"orderStatus"`
	ErrorCode             flexCode  `json:"errorCode"`
	ErrorMessage          string    `json:"errorMessage"`
	ActionCode            flexCode  `json:"actionCode"`
	ActionCodeDescription string    `json:"actionCodeDescription"`
	Amount                flexCode  `json:"amount"`
	OrderNumber           string    `json:"orderNumber"`
}

// flexCode accepts both numeric and quoted numeric JSON values; the gateway
// sends errorCode as "0" on some endpoints and 0 on others.
type flexCode int64

func (f *flexCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric code %q: %w", string(data), err)
	}
	*f = flexCode(n)
	return nil
}
