package geo

import "fmt"

// NetworkError: сервис геолокации недоступен (DNS, соединение, TLS).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("geolocation network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError: ответ не пришёл за отведённое время.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("geolocation timeout: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// StatusError: сервис ответил не 200.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geolocation service returned status %d", e.StatusCode)
}

// PayloadError: ответ не удалось разобрать.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string { return fmt.Sprintf("malformed geolocation payload: %v", e.Err) }
func (e *PayloadError) Unwrap() error { return e.Err }
