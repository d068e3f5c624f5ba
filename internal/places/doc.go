// Package places turns place group descriptors into registered feature
// collections.
//
// One update cycle walks the configured descriptors in order. For each one it
// builds a geoDB request from the compact query string, fetches and reprojects
// the features, normalizes their time property and hands the finished group to
// a Registry. Every descriptor yields a tagged Outcome; the caller decides
// whether a failure stops the cycle.
package places
