// Package cronbridge maps wall-clock schedules onto the tick scheduler.
//
// Jobs are registered under a logical name (e.g. "backup:nightly"). Names
// are stable and human readable so jobs can be replaced (upserted) and
// removed deterministically across config reloads.
//
// # Schedule formats
//
// ParseSchedule accepts several syntaxes:
//
//   - Cron expressions: 5-field (min hour dom mon dow) or 6-field with
//     optional seconds. Example: "55 * * * *" or "0 */5 * * * *".
//   - Cron descriptors: "@hourly", "@daily", "@every 55m".
//   - Interval durations: Go duration strings like "55m" or "2h30m".
//   - Interval HH:MM: a compact duration format where "00:50" means every 50
//     minutes and "02:30" means every 2 hours 30 minutes.
//
// To force interpretation, callers may prefix the string with "cron:",
// "interval:", or "every:".
//
// # Mapping
//
// Interval schedules become one repeating seconds-based action. Cron
// schedules become a chain of one-shot actions: each occurrence's callback
// re-registers the next occurrence, so a failing run is logged but does not
// kill the schedule. The bridge assumes the driver reports wall-clock
// seconds, which the stock driver loop does.
package cronbridge
