package neuron

import "fmt"

// OutOfRangeError reports a positional index outside a list's bounds.
type OutOfRangeError struct {
	Index int
	Len   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("neuron list: index %d out of range [0, %d)", e.Index, e.Len)
}

// NotFoundError reports a skeleton ID absent from a list.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("neuron list: skeleton %d not in list", e.ID)
}
