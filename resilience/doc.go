// Package resilience retries operations that fail transiently.
//
// The daemon uses it when a watched config file changes: editors often
// truncate before they write, so the first read after a change event may see
// an empty or half-written file.
//
//	cfg, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() (*Config, error) {
//	    return load(path)
//	})
package resilience
