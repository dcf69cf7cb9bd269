// Package crawler turns a list of article URLs into parsed Article records.
//
// Two execution modes exist. With more than one worker, a bounded pool runs one
// fetch+parse task per URL and results arrive in completion order. With a single
// worker, fetches run in input order and are spaced by a Pacer so that the origin
// sees at most one request per politeness interval.
//
// Cancellation stops dispatching new URLs; the articles gathered so far are
// returned in a Result flagged as Cancelled so callers can checkpoint them.
package crawler
