package dto

type PaymentIntent struct {
	BookingID       string `json:"bookingId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          Money  `json:"amount"`
}

type Refund struct {
	BookingID     string `json:"bookingId"`
	RefundID      string `json:"refundId"`
	Amount        Money  `json:"amount"`
	PaymentStatus string `json:"paymentStatus"`
}

// WebhookAck is the only answer the gateway ever gets.
type WebhookAck struct {
	Received bool `json:"received"`
}
