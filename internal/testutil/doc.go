// Package testutil contains helper builders and shared test suites used
// across packages to reduce boilerplate when constructing messages and
// asserting store behavior. It is not intended for production usage.
package testutil
