// Package retry provides exponential backoff retry logic for transient failures.
//
// Object storage is eventually consistent: a bucket that was just created can
// still be reported as missing by the calls that harden it. [Do] retries such
// calls with a bounded, exponentially growing delay. Errors wrapped with
// [Fatal] or rejected by [WithRetryIf] stop the loop immediately.
package retry
