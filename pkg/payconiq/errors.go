package payconiq

import (
	"errors"
	"fmt"
)

// Operation names a client call. It labels errors, metrics and spans.
type Operation string

const (
	OpCreatePayment   Operation = "create_payment"
	OpRetrievePayment Operation = "retrieve_payment"
	OpGetPaymentsList Operation = "get_payments_list"
	OpRefundPayment   Operation = "refund_payment"
	OpGetRefundIban   Operation = "get_refund_iban"
)

var (
	ErrCreatePaymentFailed   = errors.New("payconiq: create payment failed")
	ErrRetrievePaymentFailed = errors.New("payconiq: retrieve payment failed")
	ErrGetPaymentsListFailed = errors.New("payconiq: get payments list failed")
	ErrRefundFailed          = errors.New("payconiq: refund failed")
	ErrGetRefundIbanFailed   = errors.New("payconiq: get refund iban failed")
)

var sentinels = map[Operation]error{
	OpCreatePayment:   ErrCreatePaymentFailed,
	OpRetrievePayment: ErrRetrievePaymentFailed,
	OpGetPaymentsList: ErrGetPaymentsListFailed,
	OpRefundPayment:   ErrRefundFailed,
	OpGetRefundIban:   ErrGetRefundIbanFailed,
}

// Error is returned by every failed operation. It matches the operation's
// sentinel with errors.Is.
//
// Message and Code are copied from the response body and may be empty. When
// the request never produced a decodable body, Err holds the transport or
// decode failure. StatusCode is informational only: success is decided by the
// presence of the operation's required field, never by the HTTP status.
type Error struct {
	Op         Operation
	Message    string
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	base := e.sentinel().Error()
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", base, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", base, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status=%d)", base, e.StatusCode)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	if err, ok := sentinels[e.Op]; ok {
		return err
	}
	return fmt.Errorf("payconiq: %s failed", e.Op)
}
