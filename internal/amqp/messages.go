package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RoutingPaymentRecorded is the message type of PaymentRecordedMessage.
const RoutingPaymentRecorded = "payment.recorded"

// PaymentRecordedMessage announces a committed fee payment. It carries only
// identifiers; the ledger worker reads the payment from the database.
type PaymentRecordedMessage struct {
	MessageID string    `json:"message_id"`
	PaymentID int64     `json:"payment_id"`
	ReceiptNo string    `json:"receipt_no"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPaymentRecordedMessage(paymentID int64, receiptNo string) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		MessageID: uuid.NewString(),
		PaymentID: paymentID,
		ReceiptNo: receiptNo,
		Timestamp: time.Now().UTC(),
	}
}

func (m *PaymentRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentRecordedMessageFromJSON decodes a message and rejects ones that do
// not identify a payment.
func PaymentRecordedMessageFromJSON(data []byte) (*PaymentRecordedMessage, error) {
	var msg PaymentRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.PaymentID <= 0 {
		return nil, fmt.Errorf("message has no payment id")
	}
	return &msg, nil
}
