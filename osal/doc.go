// Package osal is the host operating-system abstraction used by the metadata
// lock: a small named-mutex API in the style of an RTOS kernel.
//
// Kernel is an in-process implementation on top of
// golang.org/x/sync/semaphore. The ddblock subpackage implements the same
// Host interface with DynamoDB leases, for volumes shared between hosts.
package osal
