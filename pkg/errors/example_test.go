// Package errors provides examples of structured error handling in the console.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/console/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "subject is required").
		WithDetail("field", "subject").
		WithDetail("op", "contact")

	fmt.Println(err.Error())

	// Output:
	// validation: subject is required
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeData, "failed to decode machines document").
		WithDetail("url", "/api/machines")

	if errors.IsType(err, errors.ErrorTypeData) {
		fmt.Println("This is a data error")
	}
	fmt.Println(err.Unwrap() == io.ErrUnexpectedEOF)

	// Output:
	// This is a data error
	// true
}

// ExampleTypeOf demonstrates classifying arbitrary errors.
func ExampleTypeOf() {
	fmt.Println(errors.TypeOf(errors.New(errors.ErrorTypeUnsupported, "publish")))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// unsupported
	// internal
}
