package enums

import "fmt"

// GatewayStatus is the orderStatus code reported by the acquiring gateway.
type GatewayStatus int

const (
	GatewayStatusRegistered            GatewayStatus = 0
	GatewayStatusPreAuthorized         GatewayStatus = 1
	GatewayStatusDeposited             GatewayStatus = 2
	GatewayStatusAuthorizationReversed GatewayStatus = 3
	GatewayStatusRefunded              GatewayStatus = 4
	GatewayStatusACSInitiated          GatewayStatus = 5
	GatewayStatusDeclined              GatewayStatus = 6
)

var gatewayStatusNames = map[GatewayStatus]string{
	GatewayStatusRegistered:            "registered-unauthorized",
	GatewayStatusPreAuthorized:         "pre-authorized",
	GatewayStatusDeposited:             "deposited",
	GatewayStatusAuthorizationReversed: "authorization-reversed",
	GatewayStatusRefunded:              "refunded",
	GatewayStatusACSInitiated:          "acs-authorization-initiated",
	GatewayStatusDeclined:              "authorization-declined",
}

// String implements fmt.Stringer.
func (s GatewayStatus) String() string {
	if name, ok := gatewayStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsValid reports whether the code belongs to the closed gateway set.
func (s GatewayStatus) IsValid() bool {
	_, ok := gatewayStatusNames[s]
	return ok
}

// ParseGatewayStatus converts a raw gateway code into a GatewayStatus.
func ParseGatewayStatus(code int) (GatewayStatus, error) {
	status := GatewayStatus(code)
	if !status.IsValid() {
		return 0, fmt.Errorf("invalid gateway status %d", code)
	}
	return status, nil
}
