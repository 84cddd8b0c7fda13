package shared

// LoadState is the state of data fetched from the invoicing backend.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateError   LoadState = "error"
	StateReady   LoadState = "ready"
)

// Result carries fetched data to a view in one of three states. The zero value is loading.
type Result[T any] struct {
	State   LoadState
	Data    T
	Message string
}

// Resolve turns a fetch outcome into a Result.
func Resolve[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{State: StateError, Message: UserSafeMessage(err)}
	}
	return Result[T]{State: StateReady, Data: data}
}

// Loading reports whether the fetch has not resolved yet.
func (r Result[T]) Loading() bool { return r.State == "" || r.State == StateLoading }

// Failed reports whether the fetch ended in an error.
func (r Result[T]) Failed() bool { return r.State == StateError }

// Ready reports whether Data is usable.
func (r Result[T]) Ready() bool { return r.State == StateReady }
