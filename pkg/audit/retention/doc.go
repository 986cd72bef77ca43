// Package retention prunes audit records by age and by count, on demand or
// on a cron schedule (github.com/robfig/cron/v3). Records can be archived
// to JSON before they are deleted.
package retention
