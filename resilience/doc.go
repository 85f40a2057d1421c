// Package resilience retries operations that fail transiently, with
// exponential backoff. Errors carrying an AppError decide for themselves
// through their Retryable flag.
//
//	db, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (*badger.DB, error) {
//	    return badger.Open(opts)
//	})
package resilience
