package domain

// Response is the uniform result of a backend call. A failed response always
// carries a displayable error string.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps a successful payload
func OK[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

// Fail builds a failed response. An empty message is replaced with a generic one.
func Fail[T any](msg string) Response[T] {
	if msg == "" {
		msg = "Request failed"
	}
	return Response[T]{Success: false, Error: msg}
}
