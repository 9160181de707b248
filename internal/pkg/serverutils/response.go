package serverutils

// Response is the standard JSON envelope for non-streaming endpoints.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func FailResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: false,
		Message: message,
		Data:    data,
	}
}
