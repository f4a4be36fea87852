// Package scheduler provides the periodic timers that drive component updates.
//
// A Scheduler arms a repeating callback and hands back a Timer whose Cancel
// is idempotent. Two implementations ship here: Ticker, backed by
// time.Ticker and accurate below one second, and Cron, backed by
// robfig/cron and sharing one cron runner across every armed timer.
//
// Driver runs a function on a cron spec such as "@every 1s". The daemon uses
// it to call the registry's Update fan-out.
package scheduler
