package models

import "errors"

var (
	ErrConsumerNotFound      = errors.New("consumer not found")
	ErrCardNotFound          = errors.New("card not found")
	ErrUnknownCategory       = errors.New("unknown establishment category")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrCardMutationForbidden = errors.New("card fields cannot be changed")
	ErrCardNumberTaken       = errors.New("card number already in use")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidConsumer       = errors.New("invalid consumer")
)
